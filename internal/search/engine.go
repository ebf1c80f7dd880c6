// Package search answers free-text queries against a built index using BM25
// ranking. The engine holds the published index behind an atomic pointer:
// queries are read-only and lock-free, and a rebuild swaps in a new index
// without ever exposing a half-built one.
package search

import (
	"context"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gutensearch/gutensearch/internal/analyzer"
	"github.com/gutensearch/gutensearch/internal/index"
	"github.com/gutensearch/gutensearch/pkg/config"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
	"github.com/gutensearch/gutensearch/pkg/metrics"
)

// BM25 parameters: k1 controls term-frequency saturation, b the strength of
// document-length normalization.
const (
	K1 = 1.5
	B  = 0.75
)

// Result is one ranked hit. Transient, produced per query, never persisted.
type Result struct {
	DocID         string            `json:"doc_id"`
	Title         string            `json:"title"`
	Score         float64           `json:"score"`
	Language      analyzer.Language `json:"language"`
	MatchingTerms []string          `json:"matching_terms"`
	Snippet       string            `json:"snippet"`
}

// Engine executes BM25 queries against the currently published index.
type Engine struct {
	current      atomic.Pointer[index.Index]
	maxTopK      int
	snippetBytes int
	met          *metrics.Metrics
}

// NewEngine creates an Engine with no published index. Queries fail with
// ErrIndexNotFound until Publish is called.
func NewEngine(cfg config.SearchConfig, met *metrics.Metrics) *Engine {
	maxTopK := cfg.MaxTopK
	if maxTopK <= 0 {
		maxTopK = 100
	}
	snippetBytes := cfg.SnippetBytes
	if snippetBytes <= 0 {
		snippetBytes = 160
	}
	return &Engine{
		maxTopK:      maxTopK,
		snippetBytes: snippetBytes,
		met:          met,
	}
}

// Publish atomically swaps in a freshly built index. In-flight queries keep
// reading the previous index; new queries see the new one.
func (e *Engine) Publish(ix *index.Index) {
	e.current.Store(ix)
}

// Index returns the currently published index, or nil.
func (e *Engine) Index() *index.Index {
	return e.current.Load()
}

// MaxTopK is the upper bound the engine enforces on result counts.
func (e *Engine) MaxTopK() int {
	return e.maxTopK
}

// Search tokenizes the query with the same analyzer used at index time,
// scores candidate documents with BM25, and returns at most topK results
// ranked by descending score with ties broken by ascending doc_id.
//
// An empty or stop-word-only query returns an empty result set, not an
// error. Query terms absent from the vocabulary contribute nothing. topK
// outside [1, MaxTopK] is rejected with ErrInvalidTopK rather than clamped.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	start := time.Now()
	if topK < 1 || topK > e.maxTopK {
		e.observe("error", start, 0)
		return nil, apperrors.Newf(apperrors.ErrInvalidTopK, "top_k %d outside [1, %d]", topK, e.maxTopK)
	}
	ix := e.current.Load()
	if ix == nil {
		e.observe("error", start, 0)
		return nil, apperrors.New(apperrors.ErrIndexNotFound, "no index has been published")
	}

	terms := dedupe(analyzer.Analyze(query, analyzer.English))
	if len(terms) == 0 {
		e.observe("empty_query", start, 0)
		return []Result{}, nil
	}

	meta := ix.Metadata()
	scores := make(map[string]float64)
	matched := make(map[string][]string)
	for _, term := range terms {
		postings := ix.Postings(term)
		if postings == nil {
			continue
		}
		idf := ix.IDF(term)
		for _, p := range postings {
			doc, ok := ix.Doc(p.DocID)
			if !ok {
				continue
			}
			scores[p.DocID] += idf * tfNorm(float64(p.Frequency), float64(doc.TokenCount), meta.AverageDocumentLength)
			matched[p.DocID] = append(matched[p.DocID], term)
		}
	}
	if len(scores) == 0 {
		e.observe("zero_result", start, 0)
		return []Result{}, nil
	}

	type scored struct {
		docID string
		score float64
	}
	ranked := make([]scored, 0, len(scores))
	for docID, score := range scores {
		ranked = append(ranked, scored{docID: docID, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].docID < ranked[j].docID
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	results := make([]Result, 0, len(ranked))
	for _, s := range ranked {
		doc, _ := ix.Doc(s.docID)
		terms := matched[s.docID]
		sort.Strings(terms)
		results = append(results, Result{
			DocID:         s.docID,
			Title:         doc.Title,
			Score:         math.Round(s.score*10000) / 10000,
			Language:      doc.Language,
			MatchingTerms: terms,
			Snippet:       extractSnippet(doc.Preview, terms, e.snippetBytes),
		})
	}
	e.observe("hit", start, len(results))
	return results, nil
}

// tfNorm is the BM25 term-frequency component with length normalization.
func tfNorm(tf, docLen, avgdl float64) float64 {
	if avgdl == 0 {
		return 0
	}
	return (tf * (K1 + 1)) / (tf + K1*(1-B+B*docLen/avgdl))
}

// dedupe removes repeated query terms, keeping first-seen order so a term
// contributes to each document's score exactly once.
func dedupe(terms []string) []string {
	if len(terms) < 2 {
		return terms
	}
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (e *Engine) observe(outcome string, start time.Time, results int) {
	if e.met == nil {
		return
	}
	e.met.QueriesTotal.WithLabelValues(outcome).Inc()
	e.met.QueryLatency.WithLabelValues("none").Observe(time.Since(start).Seconds())
	e.met.QueryResultsCount.Observe(float64(results))
}
