package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// latencyWindow bounds the samples kept for percentiles.
const latencyWindow = 10000

// maxTrackedQueries bounds each per-query table. Once a table grows past it,
// only the most frequent half is kept.
const maxTrackedQueries = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	DocsIndexed       int64        `json:"docs_indexed"`
	DocsSkipped       int64        `json:"docs_skipped"`
	IndexBuilds       int64        `json:"index_builds"`
	LastGeneration    uint64       `json:"last_generation"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	SkippedFiles      []QueryCount `json:"skipped_files,omitempty"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. It is a Sink for the
// in-process pipeline and a kafka.Handler for the consumer pipeline.
type Aggregator struct {
	mu                sync.RWMutex
	stats             AggregatedStats
	latencies         []float64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	skipped           map[string]int64
	maxQueries        int
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]float64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		skipped:           make(map[string]int64),
		maxQueries:        maxTrackedQueries,
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Send records a batch delivered by a Collector.
func (a *Aggregator) Send(_ context.Context, events []Event) error {
	for _, ev := range events {
		a.Record(ev)
	}
	return nil
}

// HandleMessage decodes one Kafka message. Undecodable messages are logged
// and acknowledged so they do not block the partition.
func (a *Aggregator) HandleMessage(_ context.Context, _ []byte, value []byte) error {
	ev, err := kafka.DecodeJSON[Event](value)
	if err != nil {
		a.logger.Error("failed to decode analytics event", "error", err)
		return nil
	}
	a.Record(ev)
	return nil
}

// Record applies one event.
func (a *Aggregator) Record(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev.Type {
	case EventSearch:
		a.stats.TotalSearches++
		if ev.CacheHit {
			a.stats.CacheHits++
		} else {
			a.stats.CacheMisses++
		}
		a.queryCounts = a.bump(a.queryCounts, ev.Query)
		if ev.TotalHits == 0 {
			a.stats.ZeroResultCount++
			a.zeroResultQueries = a.bump(a.zeroResultQueries, ev.Query)
		}
		a.addLatency(ev.LatencyMs)
	case EventDocumentIndexed:
		a.stats.DocsIndexed++
	case EventDocumentSkipped:
		a.stats.DocsSkipped++
		a.skipped = a.bump(a.skipped, ev.Filename)
	case EventIndexBuilt:
		a.stats.IndexBuilds++
		if ev.Generation > a.stats.LastGeneration {
			a.stats.LastGeneration = ev.Generation
		}
	default:
		a.logger.Debug("ignoring unknown event", "type", ev.Type)
	}
}

// bump increments key and prunes counts back to the most frequent half of
// the limit when it overflows. Pruning rebuilds the map so its buckets are
// released.
func (a *Aggregator) bump(counts map[string]int64, key string) map[string]int64 {
	counts[key]++
	if a.maxQueries <= 0 || len(counts) <= a.maxQueries {
		return counts
	}
	keep := topN(counts, a.maxQueries/2)
	pruned := make(map[string]int64, a.maxQueries)
	for _, qc := range keep {
		pruned[qc.Query] = qc.Count
	}
	a.logger.Debug("pruned query counts", "before", len(counts), "after", len(pruned))
	return pruned
}

func (a *Aggregator) addLatency(ms float64) {
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.next] = ms
	a.next = (a.next + 1) % latencyWindow
}

// Restore seeds the counters from a persisted snapshot. Per-query tables
// and latency samples start empty.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalSearches = s.TotalSearches
	a.stats.CacheHits = s.CacheHits
	a.stats.CacheMisses = s.CacheMisses
	a.stats.ZeroResultCount = s.ZeroResultCount
	a.stats.DocsIndexed = s.DocsIndexed
	a.stats.DocsSkipped = s.DocsSkipped
	a.stats.IndexBuilds = s.IndexBuilds
	a.stats.LastGeneration = s.LastGeneration
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if len(a.skipped) > 0 {
		stats.SkippedFiles = topN(a.skipped, 10)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
