package rarity

import "sort"

// Inspect reports the frequency statistics of a single trait.
//
// RarityContribution is size/count, the same term Score adds for the trait.
// A trait absent from the index has count 0, contribution 0 and no tier.
// Otherwise the tier is derived from the frequency percentage with the same
// thresholds used for ranked items.
func (idx *Index) Inspect(t Trait) TraitRarity {
	count := idx.traitCounts[t.Key()]

	var frequency float64
	if idx.size > 0 {
		frequency = float64(count) * 100 / float64(idx.size)
	}
	tr := TraitRarity{Trait: t, Count: count, Frequency: frequency}
	if count > 0 {
		tr.RarityContribution = float64(idx.size) / float64(count)
		tr.Tier = TierForPercentile(frequency)
	}
	return tr
}

// TraitTable inspects every distinct trait in the index, ordered by trait
// type, then from rarest to most common, then by value.
func (idx *Index) TraitTable() []TraitRarity {
	table := make([]TraitRarity, 0, len(idx.traits))
	for _, t := range idx.traits {
		table = append(table, idx.Inspect(t))
	}

	sort.Slice(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.Trait.TraitType != b.Trait.TraitType {
			return a.Trait.TraitType < b.Trait.TraitType
		}
		if a.Count != b.Count {
			return a.Count < b.Count
		}
		return a.Trait.Value < b.Trait.Value
	})
	return table
}
