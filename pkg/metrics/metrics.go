// Package metrics defines the Prometheus metric collectors used across the
// retrieval engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	DocsIndexedTotal    prometheus.Counter
	DocsSkippedTotal    prometheus.Counter
	BatchesMergedTotal  prometheus.Counter
	BuildDuration       prometheus.Histogram
	BuildInProgress     prometheus.Gauge
	CheckpointsTotal    prometheus.Counter
	IndexVocabularySize prometheus.Gauge
	IndexDocumentCount  prometheus.Gauge
	QueriesTotal        *prometheus.CounterVec
	QueryLatency        *prometheus.HistogramVec
	QueryResultsCount   prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	EvalRunsTotal       prometheus.Counter
}

// New creates and registers all collectors against the default registry.
func New() *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents successfully indexed.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_skipped_total",
				Help: "Total documents skipped due to parse errors.",
			},
		),
		BatchesMergedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_batches_merged_total",
				Help: "Total corpus batches merged into the index.",
			},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Wall-clock duration of full index builds.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		BuildInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_build_in_progress",
				Help: "1 while an index build is running, else 0.",
			},
		),
		CheckpointsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_checkpoints_total",
				Help: "Total build checkpoints written.",
			},
		),
		IndexVocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_vocabulary_size",
				Help: "Distinct terms in the published index.",
			},
		),
		IndexDocumentCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_document_count",
				Help: "Documents in the published index.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by outcome (hit, zero_result, empty_query, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total query cache misses.",
			},
		),
		EvalRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "eval_runs_total",
				Help: "Total evaluation harness runs.",
			},
		),
	}

	prometheus.MustRegister(
		m.DocsIndexedTotal,
		m.DocsSkippedTotal,
		m.BatchesMergedTotal,
		m.BuildDuration,
		m.BuildInProgress,
		m.CheckpointsTotal,
		m.IndexVocabularySize,
		m.IndexDocumentCount,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EvalRunsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
