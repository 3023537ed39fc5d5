package ranking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/nft-rarity/internal/events"
	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage"
)

func tr(traitType, value string) rarity.Trait {
	return rarity.Trait{TraitType: traitType, Value: value}
}

func sampleItems() []rarity.Item {
	return []rarity.Item{
		{TokenID: "A", Name: "Alpha", Attributes: []rarity.Trait{tr("bg", "red"), tr("hat", "cap")}},
		{TokenID: "B", Attributes: []rarity.Trait{tr("bg", "red"), tr("hat", "cap")}},
		{TokenID: "C", Attributes: []rarity.Trait{tr("bg", "blue"), tr("hat", "cap")}},
		{TokenID: "D", Attributes: []rarity.Trait{tr("bg", "blue"), tr("hat", "top"), tr("eyes", "laser")}},
	}
}

// recorder collects dispatched event types.
type recorder struct {
	mu    sync.Mutex
	types []string
}

func (r *recorder) observer() events.Observer {
	return events.NewFuncObserver("recorder", func(e events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.types = append(r.types, e.Type)
		return nil
	})
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func setupService(t *testing.T) (*Service, *recorder) {
	t.Helper()

	db, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rec := &recorder{}
	dispatcher := events.NewEventDispatcher()
	dispatcher.Register(rec.observer())

	return NewService(storage.NewService(db), dispatcher, nil), rec
}

func TestService_ImportRanksAndDispatches(t *testing.T) {
	svc, rec := setupService(t)
	ctx := context.Background()

	c, err := svc.Import(ctx, ImportRequest{Name: "Test Apes", Items: sampleItems()})
	require.NoError(t, err)
	assert.Equal(t, "test-apes", c.Slug)
	assert.Equal(t, 4, c.ItemCount)

	assert.Equal(t, []string{events.CollectionImported, events.CollectionRanked}, rec.got())

	page, err := svc.Rankings(ctx, c.ID, RankingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	require.Len(t, page.Items, 4)
	assert.Equal(t, "D", page.Items[0].TokenID)

	snap := svc.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.CollectionsImported)
	assert.Equal(t, uint64(4), snap.ItemsScored)
}

func TestService_ImportValidation(t *testing.T) {
	svc, rec := setupService(t)
	ctx := context.Background()

	_, err := svc.Import(ctx, ImportRequest{Items: sampleItems()})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	dup := []rarity.Item{{TokenID: "1"}, {TokenID: "1"}}
	_, err = svc.Import(ctx, ImportRequest{Slug: "dup", Items: dup})
	assert.True(t, errors.Is(err, rarity.ErrInvalidItem))

	assert.Empty(t, rec.got())
}

func TestService_RankingsPaginationAndTier(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.Import(ctx, ImportRequest{Slug: "apes", Items: sampleItems()})
	require.NoError(t, err)

	page, err := svc.Rankings(ctx, c.ID, RankingFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 4, page.Items[0].Rank)

	uncommon, err := svc.Rankings(ctx, c.ID, RankingFilter{Tier: rarity.TierUncommon})
	require.NoError(t, err)
	assert.Equal(t, 1, uncommon.Total)

	_, err = svc.Rankings(ctx, "missing", RankingFilter{})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestService_ItemAndInspect(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.Import(ctx, ImportRequest{Slug: "apes", Items: sampleItems()})
	require.NoError(t, err)

	detail, err := svc.Item(ctx, c.ID, "D")
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Rank)
	require.Len(t, detail.Traits, 3)
	assert.Equal(t, tr("bg", "blue"), detail.Traits[0].Trait)
	assert.Equal(t, 2, detail.Traits[0].Count)
	assert.Equal(t, 4.0, detail.Traits[1].RarityContribution)

	_, err = svc.Item(ctx, c.ID, "Z")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	laser, err := svc.InspectTrait(ctx, c.ID, tr("eyes", "laser"))
	require.NoError(t, err)
	assert.Equal(t, 1, laser.Count)
	assert.Equal(t, 25.0, laser.Frequency)
	assert.Equal(t, rarity.TierUncommon, laser.Tier)

	_, err = svc.InspectTrait(ctx, c.ID, rarity.Trait{Value: "x"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = svc.InspectTrait(ctx, "missing", tr("bg", "red"))
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestService_StatsAndTraitTable(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.Import(ctx, ImportRequest{Slug: "apes", Items: sampleItems()})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, rarity.Stats{CollectionSize: 4, DistinctTraits: 5, DistinctTraitTypes: 3}, stats.Index)
	assert.InDelta(t, 3.0, stats.AverageTraitCount, 1e-9)
	assert.GreaterOrEqual(t, stats.MaxScore, stats.MeanScore)
	assert.GreaterOrEqual(t, stats.MeanScore, stats.MinScore)

	var total int
	for _, tc := range stats.Tiers {
		total += tc.Count
	}
	assert.Equal(t, 4, total)

	table, err := svc.TraitTable(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, table, 5)
	assert.Equal(t, tr("bg", "blue"), table[0].Trait)
	assert.Equal(t, tr("bg", "red"), table[1].Trait)
	assert.Equal(t, tr("eyes", "laser"), table[2].Trait)
	assert.Equal(t, tr("hat", "top"), table[3].Trait)
	assert.Equal(t, tr("hat", "cap"), table[4].Trait)
}

func TestService_Similar(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.Import(ctx, ImportRequest{Slug: "apes", Items: sampleItems()})
	require.NoError(t, err)

	similar, err := svc.Similar(ctx, c.ID, "A", 0)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	// B shares both traits with A, C only the hat.
	assert.Equal(t, "B", similar[0].TokenID)
	assert.Equal(t, 1.0, similar[0].Similarity)
	assert.Equal(t, "C", similar[1].TokenID)
	assert.InDelta(t, 1.0/3.0, similar[1].Similarity, 1e-9)
	assert.Equal(t, []rarity.Trait{tr("hat", "cap")}, similar[1].SharedTraits)

	limited, err := svc.Similar(ctx, c.ID, "A", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = svc.Similar(ctx, c.ID, "Z", 5)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestService_RankedAndScoreCurve(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.Import(ctx, ImportRequest{Slug: "apes", Items: sampleItems()})
	require.NoError(t, err)

	all, err := svc.Ranked(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "D", all[0].TokenID)
	assert.Equal(t, 4, all[3].Rank)

	curve, err := svc.ScoreCurve(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, curve, 4)
	assert.InDelta(t, 10.0, curve[0], 1e-9)
	assert.InDelta(t, 2+4.0/3.0, curve[3], 1e-9)

	_, err = svc.Ranked(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = svc.ScoreCurve(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestService_RerankAndDelete(t *testing.T) {
	svc, rec := setupService(t)
	ctx := context.Background()

	c, err := svc.Import(ctx, ImportRequest{Slug: "apes", Items: sampleItems()})
	require.NoError(t, err)

	reranked, err := svc.Rerank(ctx, c.ID)
	require.NoError(t, err)
	assert.NotNil(t, reranked.RankedAt)

	require.NoError(t, svc.Delete(ctx, c.ID))
	assert.Equal(t, []string{
		events.CollectionImported,
		events.CollectionRanked,
		events.CollectionRanked,
		events.CollectionDeleted,
	}, rec.got())

	_, err = svc.InspectTrait(ctx, c.ID, tr("bg", "red"))
	assert.True(t, errors.Is(err, storage.ErrNotFound), "cache must be dropped on delete")

	assert.True(t, errors.Is(svc.Delete(ctx, c.ID), storage.ErrNotFound))
	_, err = svc.Rerank(ctx, c.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestService_CacheReloadsFromStore(t *testing.T) {
	db, err := storage.OpenMemory()
	require.NoError(t, err)
	defer db.Close()
	store := storage.NewService(db)
	ctx := context.Background()

	first := NewService(store, nil, nil)
	c, err := first.Import(ctx, ImportRequest{Slug: "apes", Items: sampleItems()})
	require.NoError(t, err)

	// A fresh service starts with an empty cache.
	second := NewService(store, nil, nil)
	_, err = second.InspectTrait(ctx, c.ID, tr("bg", "red"))
	require.NoError(t, err)
	_, err = second.InspectTrait(ctx, c.ID, tr("bg", "red"))
	require.NoError(t, err)

	snap := second.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.Equal(t, uint64(1), snap.CacheHits)
}

func TestService_ScoreIsStateless(t *testing.T) {
	svc, rec := setupService(t)

	ranked, stats, err := svc.Score(sampleItems())
	require.NoError(t, err)
	require.Len(t, ranked, 4)
	assert.Equal(t, "D", ranked[0].Item.TokenID)
	assert.Equal(t, 4, stats.CollectionSize)
	assert.Empty(t, rec.got())

	list, err := svc.Collections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	_, _, err = svc.Score([]rarity.Item{{TokenID: ""}})
	assert.True(t, errors.Is(err, rarity.ErrInvalidItem))
}

type fakeFetcher struct {
	items    []rarity.Item
	failures []metadata.FetchError
	baseURL  string
}

func (f *fakeFetcher) FetchFrom(_ context.Context, baseURL string, _ []string) ([]rarity.Item, []metadata.FetchError) {
	f.baseURL = baseURL
	return f.items, f.failures
}

func TestService_Fetch(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Fetch(ctx, FetchRequest{BaseURL: "http://x", TokenIDs: []string{"1"}})
	assert.True(t, errors.Is(err, ErrNoFetcher))

	failing := &fakeFetcher{
		items:    sampleItems()[:1],
		failures: []metadata.FetchError{{TokenID: "2", Message: "boom"}},
	}
	svc.WithFetcher(failing)

	_, err = svc.Fetch(ctx, FetchRequest{Slug: "apes"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	res, err := svc.Fetch(ctx, FetchRequest{Slug: "apes", BaseURL: "http://meta", TokenIDs: []string{"A", "2"}})
	assert.True(t, errors.Is(err, ErrIncompleteFetch))
	require.NotNil(t, res)
	assert.Len(t, res.Failures, 1)
	assert.Nil(t, res.Collection)

	res, err = svc.Fetch(ctx, FetchRequest{Slug: "apes", BaseURL: "http://meta", TokenIDs: []string{"A", "2"}, AllowPartial: true})
	require.NoError(t, err)
	require.NotNil(t, res.Collection)
	assert.Equal(t, 1, res.Collection.ItemCount)
	require.NotNil(t, res.Collection.Source)
	assert.Equal(t, "http://meta", *res.Collection.Source)
	assert.Equal(t, "http://meta", failing.baseURL)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Bored Apes":        "bored-apes",
		"  Crypto--Punks! ": "crypto-punks",
		"Über Cats 2":       "über-cats-2",
		"!!!":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}
