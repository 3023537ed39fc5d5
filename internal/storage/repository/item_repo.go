package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
)

// ItemRepository handles database operations for collection items and their
// attributes.
type ItemRepository interface {
	// InsertBatch stores items in order. Attribute order is preserved.
	InsertBatch(ctx context.Context, collectionID string, items []rarity.Item) error

	// ListByCollection returns every item in insertion order.
	ListByCollection(ctx context.Context, collectionID string) ([]rarity.Item, error)

	// Get returns one item, or nil if it does not exist.
	Get(ctx context.Context, collectionID, tokenID string) (*rarity.Item, error)

	// AttributesFor loads the attributes of the given tokens.
	AttributesFor(ctx context.Context, collectionID string, tokenIDs []string) (map[string][]rarity.Trait, error)
}

type itemRepository struct {
	db Querier
}

// NewItemRepository creates a new item repository.
func NewItemRepository(db Querier) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) InsertBatch(ctx context.Context, collectionID string, items []rarity.Item) error {
	itemQuery := `
		INSERT INTO items (collection_id, token_id, name, image, position)
		VALUES (?, ?, ?, ?, ?)
	`
	attrQuery := `
		INSERT INTO item_attributes (collection_id, token_id, ordinal, trait_type, value)
		VALUES (?, ?, ?, ?, ?)
	`

	for pos, item := range items {
		_, err := r.db.ExecContext(ctx, itemQuery,
			collectionID, item.TokenID, nullString(item.Name), nullString(item.Image), pos)
		if err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.TokenID, err)
		}

		for ord, attr := range item.Attributes {
			_, err := r.db.ExecContext(ctx, attrQuery,
				collectionID, item.TokenID, ord, attr.TraitType, attr.Value)
			if err != nil {
				return fmt.Errorf("failed to insert attribute %q of item %s: %w", attr.TraitType, item.TokenID, err)
			}
		}
	}
	return nil
}

func (r *itemRepository) ListByCollection(ctx context.Context, collectionID string) ([]rarity.Item, error) {
	query := `
		SELECT i.token_id, i.name, i.image, a.trait_type, a.value
		FROM items i
		LEFT JOIN item_attributes a
			ON a.collection_id = i.collection_id AND a.token_id = i.token_id
		WHERE i.collection_id = ?
		ORDER BY i.position, a.ordinal
	`

	rows, err := r.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer closeRows(rows)

	var items []rarity.Item
	for rows.Next() {
		var (
			tokenID          string
			name, image      sql.NullString
			traitType, value sql.NullString
		)
		if err := rows.Scan(&tokenID, &name, &image, &traitType, &value); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}

		// Rows for one item are contiguous because of the position ordering.
		if len(items) == 0 || items[len(items)-1].TokenID != tokenID {
			items = append(items, rarity.Item{
				TokenID:    tokenID,
				Name:       name.String,
				Image:      image.String,
				Attributes: []rarity.Trait{},
			})
		}
		if traitType.Valid {
			last := &items[len(items)-1]
			last.Attributes = append(last.Attributes, rarity.Trait{TraitType: traitType.String, Value: value.String})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) Get(ctx context.Context, collectionID, tokenID string) (*rarity.Item, error) {
	query := `SELECT name, image FROM items WHERE collection_id = ? AND token_id = ?`

	var name, image sql.NullString
	err := r.db.QueryRowContext(ctx, query, collectionID, tokenID).Scan(&name, &image)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	attrs, err := r.AttributesFor(ctx, collectionID, []string{tokenID})
	if err != nil {
		return nil, err
	}

	item := &rarity.Item{
		TokenID:    tokenID,
		Name:       name.String,
		Image:      image.String,
		Attributes: attrs[tokenID],
	}
	if item.Attributes == nil {
		item.Attributes = []rarity.Trait{}
	}
	return item, nil
}

// attributeBatchSize bounds the IN list of one attribute query, keeping it
// well under SQLite's host parameter limit.
const attributeBatchSize = 500

func (r *itemRepository) AttributesFor(ctx context.Context, collectionID string, tokenIDs []string) (map[string][]rarity.Trait, error) {
	out := make(map[string][]rarity.Trait, len(tokenIDs))
	for start := 0; start < len(tokenIDs); start += attributeBatchSize {
		end := min(start+attributeBatchSize, len(tokenIDs))
		if err := r.loadAttributes(ctx, collectionID, tokenIDs[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *itemRepository) loadAttributes(ctx context.Context, collectionID string, tokenIDs []string, out map[string][]rarity.Trait) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tokenIDs)), ",")
	query := `
		SELECT token_id, trait_type, value
		FROM item_attributes
		WHERE collection_id = ? AND token_id IN (` + placeholders + `)
		ORDER BY token_id, ordinal
	`

	args := make([]any, 0, len(tokenIDs)+1)
	args = append(args, collectionID)
	for _, id := range tokenIDs {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load attributes: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var tokenID string
		var t rarity.Trait
		if err := rows.Scan(&tokenID, &t.TraitType, &t.Value); err != nil {
			return fmt.Errorf("failed to scan attribute: %w", err)
		}
		out[tokenID] = append(out[tokenID], t)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating attributes: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
