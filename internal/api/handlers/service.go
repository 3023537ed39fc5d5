// Package handlers implements the HTTP handlers of the rarity API.
package handlers

import (
	"context"

	"github.com/ramonehamilton/nft-rarity/internal/metrics"
	"github.com/ramonehamilton/nft-rarity/internal/ranking"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

// RankingService is the subset of *ranking.Service used by the handlers.
type RankingService interface {
	Import(ctx context.Context, req ranking.ImportRequest) (*models.Collection, error)
	Fetch(ctx context.Context, req ranking.FetchRequest) (*ranking.FetchResult, error)
	Rerank(ctx context.Context, collectionID string) (*models.Collection, error)
	Collections(ctx context.Context) ([]*models.Collection, error)
	Collection(ctx context.Context, collectionID string) (*models.Collection, error)
	Delete(ctx context.Context, collectionID string) error
	Rankings(ctx context.Context, collectionID string, filter ranking.RankingFilter) (*ranking.RankingPage, error)
	Ranked(ctx context.Context, collectionID string) ([]*models.RankedItem, error)
	ScoreCurve(ctx context.Context, collectionID string) ([]float64, error)
	Item(ctx context.Context, collectionID, tokenID string) (*ranking.ItemDetail, error)
	Similar(ctx context.Context, collectionID, tokenID string, limit int) ([]ranking.SimilarItem, error)
	InspectTrait(ctx context.Context, collectionID string, t rarity.Trait) (rarity.TraitRarity, error)
	TraitTable(ctx context.Context, collectionID string) ([]rarity.TraitRarity, error)
	Stats(ctx context.Context, collectionID string) (*ranking.CollectionStats, error)
	Score(items []rarity.Item) ([]rarity.RankedItem, rarity.Stats, error)
	Metrics() *metrics.ScoringMetrics
}

var _ RankingService = (*ranking.Service)(nil)
