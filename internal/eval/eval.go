// Package eval measures retrieval quality by replaying judged queries
// against the query engine and computing standard IR metrics: Precision@k,
// Recall@k, MAP, and MRR. Relevance judgments are external ground truth,
// supplied as a YAML file, never computed here.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gutensearch/gutensearch/internal/search"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
	"github.com/gutensearch/gutensearch/pkg/metrics"
)

// JudgedQuery pairs a query with the set of documents known to be relevant.
type JudgedQuery struct {
	ID           string   `yaml:"id"`
	Query        string   `yaml:"query"`
	RelevantDocs []string `yaml:"relevant_docs"`
}

// queryFile is the YAML shape of the judged-query configuration.
type queryFile struct {
	Queries []JudgedQuery `yaml:"queries"`
}

// LoadQueries reads the judged-query set from a YAML file.
func LoadQueries(path string) ([]JudgedQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading judged queries %s: %w", path, err)
	}
	var qf queryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing judged queries %s: %w", path, err)
	}
	for i, q := range qf.Queries {
		if q.ID == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "judged query %d has no id", i)
		}
		if q.Query == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "judged query %q has no query text", q.ID)
		}
	}
	return qf.Queries, nil
}

// QueryMetrics holds the per-query evaluation results.
type QueryMetrics struct {
	QueryID          string          `json:"query_id"`
	PrecisionAt      map[int]float64 `json:"precision_at"`
	RecallAt         map[int]float64 `json:"recall_at"`
	AveragePrecision float64         `json:"average_precision"`
	ReciprocalRank   float64         `json:"reciprocal_rank"`
	Retrieved        int             `json:"retrieved"`
	RelevantTotal    int             `json:"relevant_total"`
	RelevantFound    int             `json:"relevant_found"`
}

// Report aggregates metrics across all judged queries.
type Report struct {
	KValues         []int           `json:"k_values"`
	MeanPrecisionAt map[int]float64 `json:"mean_precision_at"`
	MeanRecallAt    map[int]float64 `json:"mean_recall_at"`
	MAP             float64         `json:"map"`
	MRR             float64         `json:"mrr"`
	Queries         []QueryMetrics  `json:"queries"`
	// SkippedQueries lists judged queries with zero relevant documents.
	// They are excluded from every aggregate, and the exclusion is
	// reported here rather than applied silently.
	SkippedQueries []string `json:"skipped_queries"`
}

// Searcher is the slice of the query engine the harness needs.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]search.Result, error)
	MaxTopK() int
}

// Evaluate runs every judged query at a top_k generous enough to cover all
// configured cutoffs and aggregates the standard metrics.
func Evaluate(ctx context.Context, s Searcher, queries []JudgedQuery, kValues []int, met *metrics.Metrics) (*Report, error) {
	if len(queries) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "no judged queries supplied")
	}
	if len(kValues) == 0 {
		kValues = []int{5, 10, 20}
	}
	kValues = append([]int(nil), kValues...)
	sort.Ints(kValues)
	if kValues[0] < 1 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "cutoff k=%d is not positive", kValues[0])
	}

	// A cutoff the engine cannot retrieve to would understate P@k and R@k,
	// so an out-of-range k is an error, not a silent clamp.
	topK := kValues[len(kValues)-1]
	if topK > s.MaxTopK() {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput,
			"cutoff k=%d exceeds the engine's maximum top_k %d", topK, s.MaxTopK())
	}

	logger := slog.Default().With("component", "eval-harness")
	report := &Report{
		KValues:         kValues,
		MeanPrecisionAt: make(map[int]float64, len(kValues)),
		MeanRecallAt:    make(map[int]float64, len(kValues)),
	}

	var sumAP, sumRR float64
	for _, jq := range queries {
		if len(jq.RelevantDocs) == 0 {
			logger.Warn("judged query has no relevant documents, excluding from aggregates", "query_id", jq.ID)
			report.SkippedQueries = append(report.SkippedQueries, jq.ID)
			continue
		}
		results, err := s.Search(ctx, jq.Query, topK)
		if err != nil {
			return nil, fmt.Errorf("evaluating query %q: %w", jq.ID, err)
		}
		qm := scoreQuery(jq, results, kValues)
		report.Queries = append(report.Queries, qm)
		sumAP += qm.AveragePrecision
		sumRR += qm.ReciprocalRank
		for _, k := range kValues {
			report.MeanPrecisionAt[k] += qm.PrecisionAt[k]
			report.MeanRecallAt[k] += qm.RecallAt[k]
		}
	}
	n := float64(len(report.Queries))
	if n > 0 {
		report.MAP = sumAP / n
		report.MRR = sumRR / n
		for _, k := range kValues {
			report.MeanPrecisionAt[k] /= n
			report.MeanRecallAt[k] /= n
		}
	}
	if met != nil {
		met.EvalRunsTotal.Inc()
	}
	logger.Info("evaluation complete",
		"queries", len(report.Queries),
		"skipped", len(report.SkippedQueries),
		"map", report.MAP,
		"mrr", report.MRR,
	)
	return report, nil
}

// scoreQuery computes the per-query metrics over one ranked result list.
func scoreQuery(jq JudgedQuery, results []search.Result, kValues []int) QueryMetrics {
	relevant := make(map[string]struct{}, len(jq.RelevantDocs))
	for _, id := range jq.RelevantDocs {
		relevant[id] = struct{}{}
	}

	qm := QueryMetrics{
		QueryID:       jq.ID,
		PrecisionAt:   make(map[int]float64, len(kValues)),
		RecallAt:      make(map[int]float64, len(kValues)),
		Retrieved:     len(results),
		RelevantTotal: len(relevant),
	}

	relevantSoFar := 0
	var precisionSum float64
	for i, r := range results {
		if _, ok := relevant[r.DocID]; !ok {
			continue
		}
		relevantSoFar++
		rank := i + 1
		precisionSum += float64(relevantSoFar) / float64(rank)
		if qm.ReciprocalRank == 0 {
			qm.ReciprocalRank = 1.0 / float64(rank)
		}
	}
	qm.RelevantFound = relevantSoFar
	if relevantSoFar > 0 {
		qm.AveragePrecision = precisionSum / float64(relevantSoFar)
	}

	for _, k := range kValues {
		cut := k
		if cut > len(results) {
			cut = len(results)
		}
		inK := 0
		for _, r := range results[:cut] {
			if _, ok := relevant[r.DocID]; ok {
				inK++
			}
		}
		qm.PrecisionAt[k] = float64(inK) / float64(k)
		qm.RecallAt[k] = float64(inK) / float64(len(relevant))
	}
	return qm
}
