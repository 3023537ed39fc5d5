package ranking

import (
	"errors"

	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

// Pagination limits for ranking listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

var (
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoFetcher is returned by Fetch when the service has no metadata source.
	ErrNoFetcher = errors.New("metadata fetching is not configured")

	// ErrIncompleteFetch is returned when fetched metadata is not complete
	// enough to import.
	ErrIncompleteFetch = errors.New("incomplete fetch")
)

// ImportRequest describes a collection to store and rank.
type ImportRequest struct {
	Name   string        `json:"name"`
	Slug   string        `json:"slug"`
	Source string        `json:"source,omitempty"`
	Items  []rarity.Item `json:"items"`
}

// FetchRequest describes a collection whose metadata is fetched remotely.
type FetchRequest struct {
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	BaseURL  string   `json:"baseUrl"`
	TokenIDs []string `json:"tokenIds"`

	// AllowPartial imports the tokens that were fetched even when some
	// failed. Otherwise any failure aborts the import.
	AllowPartial bool `json:"allowPartial"`
}

// FetchResult reports the outcome of a fetch-and-import.
type FetchResult struct {
	Collection *models.Collection    `json:"collection,omitempty"`
	Fetched    int                   `json:"fetched"`
	Failures   []metadata.FetchError `json:"failures,omitempty"`
}

// RankingFilter selects a page of a ranking. Page is 1-based.
type RankingFilter struct {
	Tier     rarity.Tier
	Page     int
	PageSize int
}

// RankingPage is one page of a collection's ranking.
type RankingPage struct {
	Items    []*models.RankedItem `json:"items"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
	Total    int                  `json:"total"`
}

// ItemDetail is a ranked item with the rarity of each of its traits.
type ItemDetail struct {
	*models.RankedItem
	Traits []rarity.TraitRarity `json:"traits"`
}

// CollectionStats summarises a ranked collection.
type CollectionStats struct {
	Collection        *models.Collection `json:"collection"`
	Index             rarity.Stats       `json:"index"`
	AverageTraitCount float64            `json:"averageTraitCount"`
	Tiers             []models.TierCount `json:"tiers"`
	MinScore          float64            `json:"minScore"`
	MaxScore          float64            `json:"maxScore"`
	MeanScore         float64            `json:"meanScore"`
}

// SimilarItem is an item sharing traits with a reference item.
type SimilarItem struct {
	TokenID      string         `json:"tokenId"`
	Name         string         `json:"name,omitempty"`
	Rank         int            `json:"rank"`
	Score        float64        `json:"score"`
	Similarity   float64        `json:"similarity"` // Jaccard index over trait keys
	SharedTraits []rarity.Trait `json:"sharedTraits"`
}
