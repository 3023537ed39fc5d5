package events

import "github.com/ramonehamilton/nft-rarity/internal/rarity"

// Event types.
const (
	CollectionImported = "collection:imported"
	CollectionRanked   = "collection:ranked"
	CollectionDeleted  = "collection:deleted"
	ImportFailed       = "import:failed"
)

// CollectionImportedEvent is sent after a collection and its items are stored.
type CollectionImportedEvent struct {
	CollectionID string `json:"collectionId"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Items        int    `json:"items"`
	Source       string `json:"source,omitempty"` // "api", a metadata base URL or a watched file path
}

// CollectionRankedEvent is sent whenever a ranking snapshot is rebuilt.
type CollectionRankedEvent struct {
	CollectionID string              `json:"collectionId"`
	Items        int                 `json:"items"`
	TopTokenID   string              `json:"topTokenId,omitempty"`
	TopScore     float64             `json:"topScore"`
	Tiers        map[rarity.Tier]int `json:"tiers"`
	DurationMS   float64             `json:"durationMs"`
}

// CollectionDeletedEvent is sent after a collection is removed.
type CollectionDeletedEvent struct {
	CollectionID string `json:"collectionId"`
}

// ImportFailedEvent is sent when a background import (watched file or
// metadata fetch) fails.
type ImportFailedEvent struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}
