package rarity

// Index holds trait frequency statistics for a collection.
// It is immutable once built.
type Index struct {
	size        int
	traitCounts map[string]int // trait key -> items carrying it
	typeCounts  map[string]int // trait type -> (item, trait) occurrences
	traits      map[string]Trait
	avgTraits   float64
}

// NewIndex builds the frequency index for items in a single pass.
// An empty collection yields an index of size 0.
func NewIndex(items []Item) *Index {
	idx := &Index{
		size:        len(items),
		traitCounts: make(map[string]int),
		typeCounts:  make(map[string]int),
		traits:      make(map[string]Trait),
	}

	for _, item := range items {
		for _, attr := range item.Attributes {
			key := attr.Key()
			idx.traitCounts[key]++
			idx.typeCounts[attr.TraitType]++
			if _, ok := idx.traits[key]; !ok {
				idx.traits[key] = attr
			}
		}
	}

	idx.avgTraits = averageTraitCount(idx.typeCounts)
	return idx
}

// Size returns the number of items the index was built from.
func (idx *Index) Size() int {
	return idx.size
}

// TraitCount returns how many items carry t. Unknown traits return 0.
func (idx *Index) TraitCount(t Trait) int {
	return idx.traitCounts[t.Key()]
}

// TypeCount returns how many times traitType occurs across the collection.
func (idx *Index) TypeCount(traitType string) int {
	return idx.typeCounts[traitType]
}

// AverageTraitCount is the sum of per-type occurrence counts divided by the
// number of distinct trait types, or 0 when no trait types were seen.
func (idx *Index) AverageTraitCount() float64 {
	return idx.avgTraits
}

func averageTraitCount(typeCounts map[string]int) float64 {
	if len(typeCounts) == 0 {
		return 0
	}

	var total int
	for _, n := range typeCounts {
		total += n
	}
	return float64(total) / float64(len(typeCounts))
}

// Traits returns every distinct trait seen while building the index.
// Order is unspecified.
func (idx *Index) Traits() []Trait {
	out := make([]Trait, 0, len(idx.traits))
	for _, t := range idx.traits {
		out = append(out, t)
	}
	return out
}

// Stats returns the collection-level sizes of the index.
func (idx *Index) Stats() Stats {
	return Stats{
		CollectionSize:     idx.size,
		DistinctTraits:     len(idx.traitCounts),
		DistinctTraitTypes: len(idx.typeCounts),
	}
}
