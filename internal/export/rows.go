package export

import (
	"strings"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

// RankingRow is one exported line of a ranking.
type RankingRow struct {
	Rank       int     `csv:"rank" json:"rank"`
	TokenID    string  `csv:"token_id" json:"tokenId"`
	Name       string  `csv:"name" json:"name,omitempty"`
	Score      float64 `csv:"score,4" json:"score"`
	Percentile float64 `csv:"percentile,2" json:"percentile"`
	Tier       string  `csv:"tier" json:"tier"`
	TraitCount int     `csv:"trait_count" json:"traitCount"`
	Traits     string  `csv:"traits" json:"traits"` // "type: value; type: value"
}

// TraitRow is one exported line of a trait rarity table.
type TraitRow struct {
	TraitType    string  `csv:"trait_type" json:"traitType"`
	Value        string  `csv:"value" json:"value"`
	Count        int     `csv:"count" json:"count"`
	Frequency    float64 `csv:"frequency,2" json:"frequency"`
	Contribution float64 `csv:"rarity_contribution,4" json:"rarityContribution"`
	Tier         string  `csv:"tier" json:"tier"`
}

// RankingRows flattens stored ranked items for export.
func RankingRows(items []*models.RankedItem) []RankingRow {
	rows := make([]RankingRow, len(items))
	for i, ri := range items {
		rows[i] = RankingRow{
			Rank:       ri.Rank,
			TokenID:    ri.TokenID,
			Name:       ri.Item.Name,
			Score:      ri.Score,
			Percentile: ri.Percentile,
			Tier:       string(ri.Tier),
			TraitCount: len(ri.Item.Attributes),
			Traits:     joinTraits(ri.Item.Attributes),
		}
	}
	return rows
}

// RankedRows flattens in-memory ranking results for export.
func RankedRows(items []rarity.RankedItem) []RankingRow {
	rows := make([]RankingRow, len(items))
	for i, ri := range items {
		rows[i] = RankingRow{
			Rank:       ri.Rank,
			TokenID:    ri.Item.TokenID,
			Name:       ri.Item.Name,
			Score:      ri.Score,
			Percentile: ri.Percentile,
			Tier:       string(ri.Tier),
			TraitCount: len(ri.Item.Attributes),
			Traits:     joinTraits(ri.Item.Attributes),
		}
	}
	return rows
}

// TraitRows flattens a trait rarity table for export.
func TraitRows(table []rarity.TraitRarity) []TraitRow {
	rows := make([]TraitRow, len(table))
	for i, tr := range table {
		rows[i] = TraitRow{
			TraitType:    tr.Trait.TraitType,
			Value:        tr.Trait.Value,
			Count:        tr.Count,
			Frequency:    tr.Frequency,
			Contribution: tr.RarityContribution,
			Tier:         string(tr.Tier),
		}
	}
	return rows
}

func joinTraits(attrs []rarity.Trait) string {
	parts := make([]string, len(attrs))
	for i, t := range attrs {
		parts[i] = t.String()
	}
	return strings.Join(parts, "; ")
}
