package metrics

import (
	"sync/atomic"
	"time"
)

// ScoringMetrics tracks the cost of building indices and ranking collections.
type ScoringMetrics struct {
	IndexLatency   *Histogram
	RankLatency    *Histogram
	FetchLatency   *Histogram
	InspectLatency *Histogram

	CollectionsImported atomic.Uint64
	ItemsScored         atomic.Uint64
	Inspections         atomic.Uint64
	CacheHits           atomic.Uint64
	CacheMisses         atomic.Uint64
	FetchErrors         atomic.Uint64

	startTime time.Time
}

// NewScoringMetrics creates a metrics collector.
func NewScoringMetrics() *ScoringMetrics {
	return &ScoringMetrics{
		IndexLatency:   NewHistogram(defaultHistogramSize),
		RankLatency:    NewHistogram(defaultHistogramSize),
		FetchLatency:   NewHistogram(defaultHistogramSize),
		InspectLatency: NewHistogram(defaultHistogramSize),
		startTime:      time.Now(),
	}
}

// Snapshot is a point-in-time copy of the metrics, safe to serialise.
type Snapshot struct {
	IndexLatency   LatencyStats `json:"indexLatency"`
	RankLatency    LatencyStats `json:"rankLatency"`
	FetchLatency   LatencyStats `json:"fetchLatency"`
	InspectLatency LatencyStats `json:"inspectLatency"`

	CollectionsImported uint64  `json:"collectionsImported"`
	ItemsScored         uint64  `json:"itemsScored"`
	Inspections         uint64  `json:"inspections"`
	CacheHits           uint64  `json:"cacheHits"`
	CacheMisses         uint64  `json:"cacheMisses"`
	CacheHitRate        float64 `json:"cacheHitRate"` // percentage
	FetchErrors         uint64  `json:"fetchErrors"`

	Uptime string `json:"uptime"`
}

// Snapshot returns the current statistics.
func (m *ScoringMetrics) Snapshot() Snapshot {
	hits := m.CacheHits.Load()
	misses := m.CacheMisses.Load()

	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	return Snapshot{
		IndexLatency:        m.IndexLatency.Stats(),
		RankLatency:         m.RankLatency.Stats(),
		FetchLatency:        m.FetchLatency.Stats(),
		InspectLatency:      m.InspectLatency.Stats(),
		CollectionsImported: m.CollectionsImported.Load(),
		ItemsScored:         m.ItemsScored.Load(),
		Inspections:         m.Inspections.Load(),
		CacheHits:           hits,
		CacheMisses:         misses,
		CacheHitRate:        hitRate,
		FetchErrors:         m.FetchErrors.Load(),
		Uptime:              time.Since(m.startTime).Round(time.Second).String(),
	}
}
