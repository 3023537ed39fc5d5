package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
	"github.com/ramonehamilton/nft-rarity/internal/storage/repository"
)

// Service provides the persistence operations used by the ranking service.
type Service struct {
	db          *DB
	collections repository.CollectionRepository
	items       repository.ItemRepository
	rankings    repository.RankingRepository
	now         func() time.Time
}

// NewService creates a new storage service.
func NewService(db *DB) *Service {
	conn := db.Conn()
	return &Service{
		db:          db,
		collections: repository.NewCollectionRepository(conn),
		items:       repository.NewItemRepository(conn),
		rankings:    repository.NewRankingRepository(conn),
		now:         time.Now,
	}
}

// DB returns the underlying database.
func (s *Service) DB() *DB {
	return s.db
}

// SaveCollection stores a collection with its items and ranking snapshot in
// one transaction. An existing collection with the same slug is replaced and
// keeps its ID and creation time.
func (s *Service) SaveCollection(ctx context.Context, c *models.Collection, items []rarity.Item, ranked []rarity.RankedItem) (*models.Collection, error) {
	now := s.now().UTC()
	saved := *c
	saved.ItemCount = len(items)
	saved.UpdatedAt = now
	saved.RankedAt = &now

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		collections := repository.NewCollectionRepository(tx)

		existing, err := collections.GetBySlug(ctx, c.Slug)
		if err != nil {
			return err
		}
		if existing != nil {
			saved.ID = existing.ID
			saved.CreatedAt = existing.CreatedAt
			if _, err := collections.Delete(ctx, existing.ID); err != nil {
				return err
			}
		} else {
			if saved.ID == "" {
				saved.ID = uuid.NewString()
			}
			saved.CreatedAt = now
		}

		if err := collections.Create(ctx, &saved); err != nil {
			return err
		}
		if err := repository.NewItemRepository(tx).InsertBatch(ctx, saved.ID, items); err != nil {
			return err
		}
		return repository.NewRankingRepository(tx).ReplaceSnapshot(ctx, saved.ID, ranked)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save collection %q: %w", c.Slug, err)
	}
	return &saved, nil
}

// Collection returns a collection by ID or ErrNotFound.
func (s *Service) Collection(ctx context.Context, id string) (*models.Collection, error) {
	c, err := s.collections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// Collections lists every stored collection.
func (s *Service) Collections(ctx context.Context) ([]*models.Collection, error) {
	return s.collections.List(ctx)
}

// DeleteCollection removes a collection with its items and rankings.
func (s *Service) DeleteCollection(ctx context.Context, id string) error {
	deleted, err := s.collections.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	return nil
}

// Items returns every item of a collection in import order.
func (s *Service) Items(ctx context.Context, collectionID string) ([]rarity.Item, error) {
	if _, err := s.Collection(ctx, collectionID); err != nil {
		return nil, err
	}
	return s.items.ListByCollection(ctx, collectionID)
}

// SaveRankings replaces the ranking snapshot of a collection.
func (s *Service) SaveRankings(ctx context.Context, collectionID string, ranked []rarity.RankedItem) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := repository.NewRankingRepository(tx).ReplaceSnapshot(ctx, collectionID, ranked); err != nil {
			return err
		}
		return repository.NewCollectionRepository(tx).MarkRanked(ctx, collectionID, s.now())
	})
}

// Rankings returns a page of the ranking snapshot and the filtered total.
func (s *Service) Rankings(ctx context.Context, collectionID string, filter models.RankingFilter) ([]*models.RankedItem, int, error) {
	return s.rankings.List(ctx, collectionID, filter)
}

// Ranking returns the ranking of one token or ErrNotFound.
func (s *Service) Ranking(ctx context.Context, collectionID, tokenID string) (*models.RankedItem, error) {
	ri, err := s.rankings.Get(ctx, collectionID, tokenID)
	if err != nil {
		return nil, err
	}
	if ri == nil {
		return nil, fmt.Errorf("token %s in collection %s: %w", tokenID, collectionID, ErrNotFound)
	}
	return ri, nil
}

// TierCounts returns the tier distribution of a collection's snapshot.
func (s *Service) TierCounts(ctx context.Context, collectionID string) ([]models.TierCount, error) {
	return s.rankings.CountByTier(ctx, collectionID)
}

// Scores returns the snapshot's scores in rank order.
func (s *Service) Scores(ctx context.Context, collectionID string) ([]float64, error) {
	return s.rankings.Scores(ctx, collectionID)
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}
