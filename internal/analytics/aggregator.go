package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gutensearch/gutensearch/pkg/kafka"
)

// AggregatedStats is a point-in-time summary of query traffic and index
// builds, derived from the event stream.
type AggregatedStats struct {
	TotalQueries      int64        `json:"total_queries"`
	TotalBuilds       int64        `json:"total_builds"`
	TotalDocsIndexed  int64        `json:"total_docs_indexed"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator consumes analytics events from Kafka and maintains running
// statistics over queries and builds.
type Aggregator struct {
	mu                sync.RWMutex
	totalQueries      atomic.Int64
	totalBuilds       atomic.Int64
	totalDocsIndexed  atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns the Kafka handler that feeds the aggregator. Messages
// that decode as neither event type are logged and dropped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		switch string(key) {
		case "build":
			ev, err := kafka.DecodeJSON[BuildEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode build event", "error", err)
				return nil
			}
			agg.recordBuildEvent(ev)
		default:
			ev, err := kafka.DecodeJSON[QueryEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode query event", "error", err)
				return nil
			}
			agg.recordQueryEvent(ev)
		}
		return nil
	}
}

func (a *Aggregator) recordQueryEvent(ev QueryEvent) {
	a.totalQueries.Add(1)

	if ev.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if ev.Returned == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, ev.LatencyMs)
	a.queryCounts[ev.Query]++
	if ev.Returned == 0 {
		a.zeroResultQueries[ev.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordBuildEvent(ev BuildEvent) {
	a.totalBuilds.Add(1)
	a.totalDocsIndexed.Add(int64(ev.DocsIndexed))
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:     a.totalQueries.Load(),
		TotalBuilds:      a.totalBuilds.Load(),
		TotalDocsIndexed: a.totalDocsIndexed.Load(),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		ZeroResultCount:  a.zeroResults.Load(),
	}
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
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
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
