package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

// RankingRepository handles the per-collection ranking snapshot.
type RankingRepository interface {
	// ReplaceSnapshot overwrites every ranking row of a collection.
	ReplaceSnapshot(ctx context.Context, collectionID string, ranked []rarity.RankedItem) error

	// List returns ranking rows ordered by rank, plus the total number of
	// rows matching the filter before pagination.
	List(ctx context.Context, collectionID string, filter models.RankingFilter) ([]*models.RankedItem, int, error)

	// Get returns the ranking of one token, or nil if it is not ranked.
	Get(ctx context.Context, collectionID, tokenID string) (*models.RankedItem, error)

	// CountByTier returns the number of ranked items in each tier, in tier
	// order. Tiers with no items are included with a zero count.
	CountByTier(ctx context.Context, collectionID string) ([]models.TierCount, error)

	// Scores returns every score in rank order.
	Scores(ctx context.Context, collectionID string) ([]float64, error)
}

type rankingRepository struct {
	db    Querier
	items ItemRepository
}

// NewRankingRepository creates a new ranking repository.
func NewRankingRepository(db Querier) RankingRepository {
	return &rankingRepository{db: db, items: NewItemRepository(db)}
}

func (r *rankingRepository) ReplaceSnapshot(ctx context.Context, collectionID string, ranked []rarity.RankedItem) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rankings WHERE collection_id = ?`, collectionID); err != nil {
		return fmt.Errorf("failed to clear rankings: %w", err)
	}

	query := `
		INSERT INTO rankings (collection_id, token_id, score, rank, percentile, tier)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, ri := range ranked {
		_, err := r.db.ExecContext(ctx, query,
			collectionID, ri.Item.TokenID, ri.Score, ri.Rank, ri.Percentile, string(ri.Tier))
		if err != nil {
			return fmt.Errorf("failed to insert ranking for %s: %w", ri.Item.TokenID, err)
		}
	}
	return nil
}

const rankedItemSelect = `
	SELECT r.collection_id, r.token_id, r.score, r.rank, r.percentile, r.tier, i.name, i.image
	FROM rankings r
	JOIN items i ON i.collection_id = r.collection_id AND i.token_id = r.token_id
`

func (r *rankingRepository) List(ctx context.Context, collectionID string, filter models.RankingFilter) ([]*models.RankedItem, int, error) {
	where := ` WHERE r.collection_id = ?`
	args := []any{collectionID}
	if filter.Tier != "" {
		where += ` AND r.tier = ?`
		args = append(args, string(filter.Tier))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM rankings r` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rankings: %w", err)
	}

	query := rankedItemSelect + where + ` ORDER BY r.rank`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rankings: %w", err)
	}
	defer closeRows(rows)

	var ranked []*models.RankedItem
	for rows.Next() {
		ri, err := scanRankedItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ranking: %w", err)
		}
		ranked = append(ranked, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rankings: %w", err)
	}

	if err := r.attachAttributes(ctx, collectionID, ranked); err != nil {
		return nil, 0, err
	}
	return ranked, total, nil
}

func (r *rankingRepository) Get(ctx context.Context, collectionID, tokenID string) (*models.RankedItem, error) {
	query := rankedItemSelect + ` WHERE r.collection_id = ? AND r.token_id = ?`

	ri, err := scanRankedItem(r.db.QueryRowContext(ctx, query, collectionID, tokenID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking: %w", err)
	}

	if err := r.attachAttributes(ctx, collectionID, []*models.RankedItem{ri}); err != nil {
		return nil, err
	}
	return ri, nil
}

func (r *rankingRepository) attachAttributes(ctx context.Context, collectionID string, ranked []*models.RankedItem) error {
	ids := make([]string, len(ranked))
	for i, ri := range ranked {
		ids[i] = ri.TokenID
	}

	attrs, err := r.items.AttributesFor(ctx, collectionID, ids)
	if err != nil {
		return err
	}
	for _, ri := range ranked {
		ri.Item.Attributes = attrs[ri.TokenID]
		if ri.Item.Attributes == nil {
			ri.Item.Attributes = []rarity.Trait{}
		}
	}
	return nil
}

func (r *rankingRepository) CountByTier(ctx context.Context, collectionID string) ([]models.TierCount, error) {
	query := `SELECT tier, COUNT(*) FROM rankings WHERE collection_id = ? GROUP BY tier`

	rows, err := r.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tiers: %w", err)
	}
	defer closeRows(rows)

	counts := make(map[rarity.Tier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tier count: %w", err)
		}
		counts[rarity.Tier(tier)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tier counts: %w", err)
	}

	tiers := rarity.AllTiers()
	out := make([]models.TierCount, len(tiers))
	for i, t := range tiers {
		out[i] = models.TierCount{Tier: t, Count: counts[t]}
	}
	return out, nil
}

func (r *rankingRepository) Scores(ctx context.Context, collectionID string) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT score FROM rankings WHERE collection_id = ? ORDER BY rank`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer closeRows(rows)

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}
	return scores, nil
}

func scanRankedItem(row rowScanner) (*models.RankedItem, error) {
	var (
		ri          models.RankedItem
		tier        string
		name, image sql.NullString
	)

	err := row.Scan(&ri.CollectionID, &ri.TokenID, &ri.Score, &ri.Rank, &ri.Percentile, &tier, &name, &image)
	if err != nil {
		return nil, err
	}

	ri.Tier = rarity.Tier(tier)
	ri.Item = rarity.Item{TokenID: ri.TokenID, Name: name.String, Image: image.String}
	return &ri, nil
}
