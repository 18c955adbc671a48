package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/kafka"
)

const (
	topQueriesLimit = 10
	// maxLatencySamples caps the latency window used for percentiles.
	maxLatencySamples = 10000
)

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalExports      int64        `json:"total_exports"`
	FoundCount        int64        `json:"found_count"`
	TermNotFoundCount int64        `json:"term_not_found_count"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	LargeResultCount  int64        `json:"large_result_count"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	MissingTerms      []QueryCount `json:"missing_terms"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running search statistics in memory.
type Aggregator struct {
	mu                sync.RWMutex
	stats             AggregatedStats
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	missingTerms      map[string]int64
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		missingTerms:      make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns the Kafka handler feeding agg. Undecodable messages are
// logged and skipped so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Type == EventExport {
		a.stats.TotalExports++
		return
	}
	a.stats.TotalSearches++
	if event.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}
	switch event.Status {
	case executor.OutcomeFound:
		a.stats.FoundCount++
	case executor.OutcomeEmpty:
		a.stats.FoundCount++
		a.stats.ZeroResultCount++
		a.zeroResultQueries[event.Query]++
	case executor.OutcomeTermNotFound:
		a.stats.TermNotFoundCount++
		for _, term := range event.MissingTerms {
			a.missingTerms[term]++
		}
	}
	if event.LargeResult {
		a.stats.LargeResultCount++
	}

	if len(a.latencies) == maxLatencySamples {
		copy(a.latencies, a.latencies[1:])
		a.latencies = a.latencies[:maxLatencySamples-1]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
}

// Restore seeds the counters from a persisted snapshot, so totals survive a
// restart. Latency samples are not persisted and start empty.
func (a *Aggregator) Restore(snapshot AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalSearches = snapshot.TotalSearches
	a.stats.TotalExports = snapshot.TotalExports
	a.stats.FoundCount = snapshot.FoundCount
	a.stats.TermNotFoundCount = snapshot.TermNotFoundCount
	a.stats.ZeroResultCount = snapshot.ZeroResultCount
	a.stats.LargeResultCount = snapshot.LargeResultCount
	a.stats.CacheHits = snapshot.CacheHits
	a.stats.CacheMisses = snapshot.CacheMisses
	for _, qc := range snapshot.TopQueries {
		a.queryCounts[qc.Query] = qc.Count
	}
	for _, qc := range snapshot.ZeroResultQueries {
		a.zeroResultQueries[qc.Query] = qc.Count
	}
	for _, qc := range snapshot.MissingTerms {
		a.missingTerms[qc.Query] = qc.Count
	}
	a.logger.Info("analytics restored from snapshot", "total_searches", snapshot.TotalSearches)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topQueriesLimit)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topQueriesLimit)
	stats.MissingTerms = topN(a.missingTerms, topQueriesLimit)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then by query so equal counts list stably.
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
