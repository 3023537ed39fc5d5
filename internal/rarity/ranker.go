package rarity

import "sort"

// Rank sorts scored items by score descending and assigns rank, percentile
// and tier. The sort is stable, so exact ties keep their input order.
//
// Percentiles are relative to the index size, not len(scored): ranking a
// subset never reaches 100. An empty index yields percentile 0.
func Rank(idx *Index, scored []ScoredItem) []RankedItem {
	sorted := make([]ScoredItem, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	ranked := make([]RankedItem, len(sorted))
	for i, s := range sorted {
		rank := i + 1
		p := percentile(rank, idx.Size())
		ranked[i] = RankedItem{
			Item:       s.Item,
			Score:      s.Score,
			Rank:       rank,
			Percentile: p,
			Tier:       TierForPercentile(p),
		}
	}
	return ranked
}

// Rank scores and ranks items against the index.
func (idx *Index) Rank(items []Item) []RankedItem {
	return Rank(idx, idx.ScoreAll(items))
}

func percentile(rank, size int) float64 {
	if size == 0 {
		return 0
	}
	return float64(rank) * 100 / float64(size)
}
