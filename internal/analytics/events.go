package analytics

import "time"

type EventType string

const (
	EventQuery      EventType = "query"
	EventZeroResult EventType = "zero_result"
	EventBuild      EventType = "index_build"
)

// QueryEvent describes one executed search.
type QueryEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Returned  int       `json:"returned"`
	TopScore  float64   `json:"top_score"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
}

// BuildEvent describes one completed index build.
type BuildEvent struct {
	Type        EventType `json:"type"`
	DocsIndexed int       `json:"docs_indexed"`
	DocsSkipped int       `json:"docs_skipped"`
	Batches     int       `json:"batches"`
	Vocabulary  int       `json:"vocabulary"`
	DurationMs  int64     `json:"duration_ms"`
	ResumedFrom int       `json:"resumed_from"`
	Timestamp   time.Time `json:"timestamp"`
}
