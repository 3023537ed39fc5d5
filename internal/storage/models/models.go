// Package models defines the persisted records of the rarity service.
package models

import (
	"time"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
)

// Collection is a named set of items ranked together.
type Collection struct {
	ID        string     `json:"id"`
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	ItemCount int        `json:"itemCount"`
	Source    *string    `json:"source,omitempty"` // Nullable: metadata base URL or import file
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	RankedAt  *time.Time `json:"rankedAt,omitempty"` // Nullable until first ranking
}

// Ranking is one row of a collection's ranking snapshot.
type Ranking struct {
	CollectionID string      `json:"collectionId"`
	TokenID      string      `json:"tokenId"`
	Score        float64     `json:"score"`
	Rank         int         `json:"rank"`
	Percentile   float64     `json:"percentile"`
	Tier         rarity.Tier `json:"tier"`
}

// RankedItem joins a ranking row with its item.
type RankedItem struct {
	Ranking
	Item rarity.Item `json:"item"`
}

// RankingFilter narrows a ranking listing.
type RankingFilter struct {
	Tier   rarity.Tier
	Offset int
	Limit  int // 0 = no limit
}

// TierCount is the number of ranked items in a tier.
type TierCount struct {
	Tier  rarity.Tier `json:"tier"`
	Count int         `json:"count"`
}
