package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage"
)

// Limits for Similar.
const (
	DefaultSimilarLimit = 10
	MaxSimilarLimit     = 100
)

// entry is the cached, read-only state of one ranked collection. Entries
// are replaced, never mutated, so readers share them without locking.
type entry struct {
	index   *rarity.Index
	ranked  []rarity.RankedItem
	byToken map[string]int // token ID -> position in ranked
}

func newEntry(idx *rarity.Index, ranked []rarity.RankedItem) *entry {
	byToken := make(map[string]int, len(ranked))
	for i, ri := range ranked {
		byToken[ri.Item.TokenID] = i
	}
	return &entry{index: idx, ranked: ranked, byToken: byToken}
}

func (s *Service) put(collectionID string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[collectionID]++
	s.cache[collectionID] = e
}

func (s *Service) invalidate(collectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[collectionID]++
	delete(s.cache, collectionID)
}

// loadEntry returns the cached index of a collection, loading it from the store
// on a miss. A load that races with an import or delete is not cached.
func (s *Service) loadEntry(ctx context.Context, collectionID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.cache[collectionID]
	version := s.versions[collectionID]
	s.mu.RUnlock()

	if ok {
		s.metrics.CacheHits.Add(1)
		return e, nil
	}
	s.metrics.CacheMisses.Add(1)

	items, err := s.store.Items(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	idx := rarity.NewIndex(items)
	e = newEntry(idx, rarity.Rank(idx, idx.ScoreAll(items)))

	s.mu.Lock()
	if s.versions[collectionID] == version {
		s.cache[collectionID] = e
	}
	s.mu.Unlock()
	return e, nil
}

// TraitTable returns the rarity of every distinct trait, ordered by trait
// type and then from rarest to most common.
func (s *Service) TraitTable(ctx context.Context, collectionID string) ([]rarity.TraitRarity, error) {
	e, err := s.loadEntry(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	return e.index.TraitTable(), nil
}

// Similar returns the items sharing the most traits with tokenID, by Jaccard
// similarity over trait keys. Ties go to the better ranked item. Items with
// no trait in common are omitted.
func (s *Service) Similar(ctx context.Context, collectionID, tokenID string, limit int) ([]SimilarItem, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	limit = min(limit, MaxSimilarLimit)

	e, err := s.loadEntry(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	pos, ok := e.byToken[tokenID]
	if !ok {
		return nil, fmt.Errorf("token %s in collection %s: %w", tokenID, collectionID, storage.ErrNotFound)
	}

	ref := traitSet(e.ranked[pos].Item.Attributes)
	similar := []SimilarItem{}
	for i, ri := range e.ranked {
		if i == pos {
			continue
		}

		other := traitSet(ri.Item.Attributes)
		var shared []rarity.Trait
		for key, t := range other {
			if _, ok := ref[key]; ok {
				shared = append(shared, t)
			}
		}
		if len(shared) == 0 {
			continue
		}

		sort.Slice(shared, func(a, b int) bool {
			return shared[a].TraitType < shared[b].TraitType ||
				(shared[a].TraitType == shared[b].TraitType && shared[a].Value < shared[b].Value)
		})

		union := len(ref) + len(other) - len(shared)
		similar = append(similar, SimilarItem{
			TokenID:      ri.Item.TokenID,
			Name:         ri.Item.Name,
			Rank:         ri.Rank,
			Score:        ri.Score,
			Similarity:   float64(len(shared)) / float64(union),
			SharedTraits: shared,
		})
	}

	// ranked is already in rank order, so a stable sort keeps rank as the
	// tie-break.
	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Similarity > similar[j].Similarity
	})

	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

func traitSet(attrs []rarity.Trait) map[string]rarity.Trait {
	set := make(map[string]rarity.Trait, len(attrs))
	for _, t := range attrs {
		set[t.Key()] = t
	}
	return set
}
