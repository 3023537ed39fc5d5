package ranking

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ramonehamilton/nft-rarity/internal/events"
	"github.com/ramonehamilton/nft-rarity/internal/metrics"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

// Service imports, ranks and queries collections.
type Service struct {
	store      Store
	fetcher    Fetcher
	dispatcher *events.EventDispatcher
	metrics    *metrics.ScoringMetrics

	mu       sync.RWMutex
	cache    map[string]*entry
	versions map[string]uint64
}

// NewService creates a ranking service. dispatcher may be nil; a nil
// metrics collector is replaced with a fresh one.
func NewService(store Store, dispatcher *events.EventDispatcher, m *metrics.ScoringMetrics) *Service {
	if m == nil {
		m = metrics.NewScoringMetrics()
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		metrics:    m,
		cache:      make(map[string]*entry),
		versions:   make(map[string]uint64),
	}
}

// WithFetcher enables Fetch using f.
func (s *Service) WithFetcher(f Fetcher) *Service {
	s.fetcher = f
	return s
}

// Metrics returns the service's metrics collector.
func (s *Service) Metrics() *metrics.ScoringMetrics {
	return s.metrics
}

// rank builds the index for items and ranks them, recording latencies.
func (s *Service) rank(items []rarity.Item) *entry {
	start := time.Now()
	idx := rarity.NewIndex(items)
	s.metrics.IndexLatency.Time(start)

	start = time.Now()
	ranked := rarity.Rank(idx, idx.ScoreAll(items))
	s.metrics.RankLatency.Time(start)
	s.metrics.ItemsScored.Add(uint64(len(items)))

	return newEntry(idx, ranked)
}

// Import validates, stores and ranks a collection. Importing a slug that
// already exists replaces that collection.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*models.Collection, error) {
	slug := req.Slug
	if slug == "" {
		slug = Slugify(req.Name)
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: name or slug is required", ErrInvalidRequest)
	}
	name := req.Name
	if name == "" {
		name = slug
	}

	if err := rarity.ValidateCollection(req.Items); err != nil {
		return nil, err
	}

	start := time.Now()
	e := s.rank(req.Items)

	c := &models.Collection{Slug: slug, Name: name}
	if req.Source != "" {
		src := req.Source
		c.Source = &src
	}

	saved, err := s.store.SaveCollection(ctx, c, req.Items, e.ranked)
	if err != nil {
		return nil, fmt.Errorf("failed to import collection %q: %w", slug, err)
	}

	s.put(saved.ID, e)
	s.metrics.CollectionsImported.Add(1)
	log.Printf("[RankingService] Imported %q (%s) with %d items in %v", slug, saved.ID, len(req.Items), time.Since(start))

	s.dispatcher.Dispatch(events.NewTypedEvent(ctx, events.CollectionImported, events.CollectionImportedEvent{
		CollectionID: saved.ID,
		Slug:         saved.Slug,
		Name:         saved.Name,
		Items:        saved.ItemCount,
		Source:       req.Source,
	}))
	s.dispatchRanked(ctx, saved.ID, e, time.Since(start))

	return saved, nil
}

// Fetch retrieves token metadata from req.BaseURL and imports the result.
func (s *Service) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	if s.fetcher == nil {
		return nil, ErrNoFetcher
	}
	if req.BaseURL == "" || len(req.TokenIDs) == 0 {
		return nil, fmt.Errorf("%w: baseUrl and tokenIds are required", ErrInvalidRequest)
	}

	start := time.Now()
	items, failures := s.fetcher.FetchFrom(ctx, req.BaseURL, req.TokenIDs)
	s.metrics.FetchLatency.Time(start)
	s.metrics.FetchErrors.Add(uint64(len(failures)))

	result := &FetchResult{Fetched: len(items), Failures: failures}
	if len(failures) > 0 && !req.AllowPartial {
		s.dispatchImportFailed(ctx, req.BaseURL, fmt.Errorf("%d of %d tokens failed", len(failures), len(req.TokenIDs)))
		return result, fmt.Errorf("%w: %d of %d tokens failed to fetch", ErrIncompleteFetch, len(failures), len(req.TokenIDs))
	}
	if len(items) == 0 {
		return result, fmt.Errorf("%w: no tokens fetched", ErrIncompleteFetch)
	}

	c, err := s.Import(ctx, ImportRequest{Name: req.Name, Slug: req.Slug, Source: req.BaseURL, Items: items})
	if err != nil {
		return result, err
	}
	result.Collection = c
	return result, nil
}

// Rerank rebuilds the index and ranking snapshot from stored items.
func (s *Service) Rerank(ctx context.Context, collectionID string) (*models.Collection, error) {
	start := time.Now()
	items, err := s.store.Items(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	e := s.rank(items)
	if err := s.store.SaveRankings(ctx, collectionID, e.ranked); err != nil {
		return nil, fmt.Errorf("failed to save rankings: %w", err)
	}
	s.put(collectionID, e)

	s.dispatchRanked(ctx, collectionID, e, time.Since(start))
	return s.store.Collection(ctx, collectionID)
}

// Collections lists stored collections.
func (s *Service) Collections(ctx context.Context) ([]*models.Collection, error) {
	return s.store.Collections(ctx)
}

// Collection returns one collection.
func (s *Service) Collection(ctx context.Context, collectionID string) (*models.Collection, error) {
	return s.store.Collection(ctx, collectionID)
}

// Delete removes a collection and drops its cached index.
func (s *Service) Delete(ctx context.Context, collectionID string) error {
	if err := s.store.DeleteCollection(ctx, collectionID); err != nil {
		return err
	}
	s.invalidate(collectionID)

	log.Printf("[RankingService] Deleted collection %s", collectionID)
	s.dispatcher.Dispatch(events.NewTypedEvent(ctx, events.CollectionDeleted, events.CollectionDeletedEvent{
		CollectionID: collectionID,
	}))
	return nil
}

// Rankings returns a page of a collection's ranking.
func (s *Service) Rankings(ctx context.Context, collectionID string, filter RankingFilter) (*RankingPage, error) {
	if _, err := s.store.Collection(ctx, collectionID); err != nil {
		return nil, err
	}

	page := max(filter.Page, 1)
	size := filter.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)

	items, total, err := s.store.Rankings(ctx, collectionID, models.RankingFilter{
		Tier:   filter.Tier,
		Offset: (page - 1) * size,
		Limit:  size,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.RankedItem{}
	}

	return &RankingPage{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// Item returns a ranked item with the rarity of each of its traits.
func (s *Service) Item(ctx context.Context, collectionID, tokenID string) (*ItemDetail, error) {
	ri, err := s.store.Ranking(ctx, collectionID, tokenID)
	if err != nil {
		return nil, err
	}

	e, err := s.loadEntry(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	traits := make([]rarity.TraitRarity, len(ri.Item.Attributes))
	for i, attr := range ri.Item.Attributes {
		traits[i] = e.index.Inspect(attr)
	}
	return &ItemDetail{RankedItem: ri, Traits: traits}, nil
}

// InspectTrait reports the frequency statistics of one trait.
func (s *Service) InspectTrait(ctx context.Context, collectionID string, t rarity.Trait) (rarity.TraitRarity, error) {
	if t.TraitType == "" {
		return rarity.TraitRarity{}, fmt.Errorf("%w: trait_type is required", ErrInvalidRequest)
	}

	e, err := s.loadEntry(ctx, collectionID)
	if err != nil {
		return rarity.TraitRarity{}, err
	}

	start := time.Now()
	tr := e.index.Inspect(t)
	s.metrics.InspectLatency.Time(start)
	s.metrics.Inspections.Add(1)
	return tr, nil
}

// Stats summarises a collection's index, tier distribution and scores.
func (s *Service) Stats(ctx context.Context, collectionID string) (*CollectionStats, error) {
	c, err := s.store.Collection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	e, err := s.loadEntry(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	tiers, err := s.store.TierCounts(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	scores, err := s.store.Scores(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	stats := &CollectionStats{
		Collection:        c,
		Index:             e.index.Stats(),
		AverageTraitCount: e.index.AverageTraitCount(),
		Tiers:             tiers,
	}
	if len(scores) > 0 {
		// Scores arrive in rank order, so the extremes are at the ends.
		stats.MaxScore = scores[0]
		stats.MinScore = scores[len(scores)-1]
		var sum float64
		for _, sc := range scores {
			sum += sc
		}
		stats.MeanScore = sum / float64(len(scores))
	}
	return stats, nil
}

// Ranked returns the complete ranking of a collection in rank order.
func (s *Service) Ranked(ctx context.Context, collectionID string) ([]*models.RankedItem, error) {
	if _, err := s.store.Collection(ctx, collectionID); err != nil {
		return nil, err
	}
	items, _, err := s.store.Rankings(ctx, collectionID, models.RankingFilter{})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.RankedItem{}
	}
	return items, nil
}

// ScoreCurve returns every score of a collection in rank order.
func (s *Service) ScoreCurve(ctx context.Context, collectionID string) ([]float64, error) {
	if _, err := s.store.Collection(ctx, collectionID); err != nil {
		return nil, err
	}
	return s.store.Scores(ctx, collectionID)
}

// Score ranks items without storing them.
func (s *Service) Score(items []rarity.Item) ([]rarity.RankedItem, rarity.Stats, error) {
	if err := rarity.ValidateCollection(items); err != nil {
		return nil, rarity.Stats{}, err
	}

	e := s.rank(items)
	return e.ranked, e.index.Stats(), nil
}

func (s *Service) dispatchRanked(ctx context.Context, collectionID string, e *entry, d time.Duration) {
	tiers := make(map[rarity.Tier]int)
	for _, ri := range e.ranked {
		tiers[ri.Tier]++
	}

	payload := events.CollectionRankedEvent{
		CollectionID: collectionID,
		Items:        len(e.ranked),
		Tiers:        tiers,
		DurationMS:   float64(d.Microseconds()) / 1000.0,
	}
	if len(e.ranked) > 0 {
		payload.TopTokenID = e.ranked[0].Item.TokenID
		payload.TopScore = e.ranked[0].Score
	}
	s.dispatcher.Dispatch(events.NewTypedEvent(ctx, events.CollectionRanked, payload))
}

func (s *Service) dispatchImportFailed(ctx context.Context, source string, err error) {
	s.dispatcher.Dispatch(events.NewTypedEvent(ctx, events.ImportFailed, events.ImportFailedEvent{
		Source: source,
		Error:  err.Error(),
	}))
}

// ReportImportFailure publishes a failed background import.
func (s *Service) ReportImportFailure(ctx context.Context, source string, err error) {
	log.Printf("[RankingService] Import from %s failed: %v", source, err)
	s.dispatchImportFailed(ctx, source, err)
}

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
