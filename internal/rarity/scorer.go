package rarity

// Score returns the rarity score of item against the index.
//
// Each trait contributes size/frequency; traits missing from the index are
// treated as seen once. Items with more traits than AverageTraitCount get
// the TraitCountBonus. Items without attributes score exactly 0, as does
// everything scored against an empty index.
func (idx *Index) Score(item Item) float64 {
	if len(item.Attributes) == 0 || idx.size == 0 {
		return 0
	}

	size := float64(idx.size)
	var sum float64
	for _, attr := range item.Attributes {
		freq, ok := idx.traitCounts[attr.Key()]
		if !ok || freq == 0 {
			freq = 1
		}
		sum += size / float64(freq)
	}

	if float64(len(item.Attributes)) > idx.AverageTraitCount() {
		sum *= TraitCountBonus
	}
	return sum
}

// ScoreAll scores items in input order. items may be a subset of, or
// entirely different from, the collection the index was built from.
func (idx *Index) ScoreAll(items []Item) []ScoredItem {
	scored := make([]ScoredItem, len(items))
	for i, item := range items {
		scored[i] = ScoredItem{Item: item, Score: idx.Score(item)}
	}
	return scored
}
