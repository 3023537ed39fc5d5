// Package ranking orchestrates the rarity engine with persistence, events
// and metrics. It owns the per-collection index cache.
package ranking

import (
	"context"

	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

// Store persists collections and ranking snapshots. Lookups of unknown
// collections or tokens return an error wrapping storage.ErrNotFound.
type Store interface {
	SaveCollection(ctx context.Context, c *models.Collection, items []rarity.Item, ranked []rarity.RankedItem) (*models.Collection, error)
	Collection(ctx context.Context, id string) (*models.Collection, error)
	Collections(ctx context.Context) ([]*models.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
	Items(ctx context.Context, collectionID string) ([]rarity.Item, error)
	SaveRankings(ctx context.Context, collectionID string, ranked []rarity.RankedItem) error
	Rankings(ctx context.Context, collectionID string, filter models.RankingFilter) ([]*models.RankedItem, int, error)
	Ranking(ctx context.Context, collectionID, tokenID string) (*models.RankedItem, error)
	TierCounts(ctx context.Context, collectionID string) ([]models.TierCount, error)
	Scores(ctx context.Context, collectionID string) ([]float64, error)
}

// Fetcher retrieves token metadata from a remote source.
type Fetcher interface {
	FetchFrom(ctx context.Context, baseURL string, tokenIDs []string) ([]rarity.Item, []metadata.FetchError)
}
