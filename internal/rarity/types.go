// Package rarity computes trait-frequency rarity scores for NFT collections.
//
// The package is pure: an Index is built once from a collection and is
// read-only afterwards, so a single Index may be shared by any number of
// concurrent scoring calls without locking.
package rarity

import (
	"errors"
	"fmt"
)

// keySeparator joins trait type and value into a trait key.
// The ASCII unit separator does not occur in real metadata.
const keySeparator = "\x1f"

// TraitCountBonus is the multiplier applied to items carrying more traits
// than the collection average.
const TraitCountBonus = 1.1

// ErrInvalidItem is returned when an item violates the input contract.
var ErrInvalidItem = errors.New("invalid item")

// Trait is a single (trait_type, value) pair attached to an item.
// Matching is exact and case-sensitive on both fields.
type Trait struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Key returns the frequency-index key for the trait.
func (t Trait) Key() string {
	return t.TraitType + keySeparator + t.Value
}

// String returns a human-readable form of the trait.
func (t Trait) String() string {
	return t.TraitType + ": " + t.Value
}

// Item is the NFT metadata consumed by the engine.
type Item struct {
	TokenID    string  `json:"tokenId"`
	Name       string  `json:"name,omitempty"`
	Image      string  `json:"image,omitempty"`
	Attributes []Trait `json:"attributes"`
}

// ScoredItem pairs an item with its rarity score.
type ScoredItem struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}

// RankedItem is a scored item annotated with its position in the collection.
type RankedItem struct {
	Item       Item    `json:"item"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	Percentile float64 `json:"percentile"`
	Tier       Tier    `json:"tier"`
}

// TraitRarity describes how rare a single trait is within an index.
type TraitRarity struct {
	Trait              Trait   `json:"trait"`
	Count              int     `json:"count"`
	Frequency          float64 `json:"frequency"` // percent of the collection
	RarityContribution float64 `json:"rarityContribution"`
	Tier               Tier    `json:"tier,omitempty"`
}

// Stats summarises the sizes held by an index.
type Stats struct {
	CollectionSize     int `json:"collectionSize"`
	DistinctTraits     int `json:"distinctTraits"`
	DistinctTraitTypes int `json:"distinctTraitTypes"`
}

// ValidateItem checks the fields the engine relies on.
func ValidateItem(item Item) error {
	if item.TokenID == "" {
		return fmt.Errorf("%w: empty token id", ErrInvalidItem)
	}
	for i, attr := range item.Attributes {
		if attr.TraitType == "" {
			return fmt.Errorf("%w: token %s attribute %d has no trait type", ErrInvalidItem, item.TokenID, i)
		}
	}
	return nil
}

// ValidateCollection validates every item and rejects duplicate token IDs.
func ValidateCollection(items []Item) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := ValidateItem(item); err != nil {
			return err
		}
		if _, dup := seen[item.TokenID]; dup {
			return fmt.Errorf("%w: duplicate token id %s", ErrInvalidItem, item.TokenID)
		}
		seen[item.TokenID] = struct{}{}
	}
	return nil
}
