package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

// CollectionRepository handles database operations for collections.
type CollectionRepository interface {
	// Create inserts a new collection.
	Create(ctx context.Context, c *models.Collection) error

	// GetByID returns the collection with id, or nil if none exists.
	GetByID(ctx context.Context, id string) (*models.Collection, error)

	// GetBySlug returns the collection with slug, or nil if none exists.
	GetBySlug(ctx context.Context, slug string) (*models.Collection, error)

	// List returns every collection, newest first.
	List(ctx context.Context) ([]*models.Collection, error)

	// MarkRanked records when the ranking snapshot was last rebuilt.
	MarkRanked(ctx context.Context, id string, at time.Time) error

	// Delete removes a collection and, by cascade, its items and rankings.
	// It reports whether a row was deleted.
	Delete(ctx context.Context, id string) (bool, error)
}

type collectionRepository struct {
	db Querier
}

// NewCollectionRepository creates a new collection repository.
func NewCollectionRepository(db Querier) CollectionRepository {
	return &collectionRepository{db: db}
}

const collectionColumns = `id, slug, name, item_count, source, created_at, updated_at, ranked_at`

func (r *collectionRepository) Create(ctx context.Context, c *models.Collection) error {
	query := `
		INSERT INTO collections (` + collectionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Slug, c.Name, c.ItemCount, c.Source,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(), nullTime(c.RankedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *collectionRepository) GetByID(ctx context.Context, id string) (*models.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = ?`
	return r.getOne(ctx, query, id)
}

func (r *collectionRepository) GetBySlug(ctx context.Context, slug string) (*models.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE slug = ?`
	return r.getOne(ctx, query, slug)
}

func (r *collectionRepository) getOne(ctx context.Context, query string, arg any) (*models.Collection, error) {
	c, err := scanCollection(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return c, nil
}

func (r *collectionRepository) List(ctx context.Context) ([]*models.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections ORDER BY created_at DESC, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer closeRows(rows)

	var collections []*models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}
	return collections, nil
}

func (r *collectionRepository) MarkRanked(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE collections SET ranked_at = ?, updated_at = ? WHERE id = ?`

	at = at.UTC()
	if _, err := r.db.ExecContext(ctx, query, at, at, id); err != nil {
		return fmt.Errorf("failed to mark collection ranked: %w", err)
	}
	return nil
}

func (r *collectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete collection: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*models.Collection, error) {
	var (
		c        models.Collection
		source   sql.NullString
		rankedAt sql.NullTime
	)

	err := row.Scan(&c.ID, &c.Slug, &c.Name, &c.ItemCount, &source, &c.CreatedAt, &c.UpdatedAt, &rankedAt)
	if err != nil {
		return nil, err
	}

	if source.Valid {
		c.Source = &source.String
	}
	if rankedAt.Valid {
		c.RankedAt = &rankedAt.Time
	}
	return &c, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
