package eval

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gutensearch/gutensearch/internal/search"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
)

// fixedSearcher returns a canned ranked list regardless of the query text.
type fixedSearcher struct {
	results map[string][]search.Result
}

func (f *fixedSearcher) Search(_ context.Context, query string, topK int) ([]search.Result, error) {
	rs := f.results[query]
	if len(rs) > topK {
		rs = rs[:topK]
	}
	return rs, nil
}

func (f *fixedSearcher) MaxTopK() int { return 100 }

func ranked(ids ...string) []search.Result {
	out := make([]search.Result, 0, len(ids))
	for i, id := range ids {
		out = append(out, search.Result{DocID: id, Score: float64(len(ids) - i)})
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPrecisionRecallReciprocalRank(t *testing.T) {
	// Relevant documents appear at ranks 1 and 3 in a list of ten.
	s := &fixedSearcher{results: map[string][]search.Result{
		"whales": ranked("d1", "x1", "d3", "x2", "x3", "x4", "x5", "x6", "x7", "x8"),
	}}
	queries := []JudgedQuery{
		{ID: "q1", Query: "whales", RelevantDocs: []string{"d1", "d3"}},
	}

	report, err := Evaluate(context.Background(), s, queries, []int{5, 10}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(report.Queries) != 1 {
		t.Fatalf("expected 1 evaluated query, got %d", len(report.Queries))
	}
	qm := report.Queries[0]

	if !almostEqual(qm.PrecisionAt[5], 2.0/5.0) {
		t.Errorf("P@5 = %v, want 0.4", qm.PrecisionAt[5])
	}
	if !almostEqual(qm.RecallAt[10], 1.0) {
		t.Errorf("R@10 = %v, want 1.0", qm.RecallAt[10])
	}
	if !almostEqual(qm.ReciprocalRank, 1.0) {
		t.Errorf("RR = %v, want 1.0", qm.ReciprocalRank)
	}
	// AP = (1/1 + 2/3) / 2
	if !almostEqual(qm.AveragePrecision, (1.0+2.0/3.0)/2.0) {
		t.Errorf("AP = %v, want %v", qm.AveragePrecision, (1.0+2.0/3.0)/2.0)
	}
}

func TestZeroRelevantQueriesAreReportedNotAveraged(t *testing.T) {
	s := &fixedSearcher{results: map[string][]search.Result{
		"good": ranked("d1", "x1"),
		"bad":  ranked("x1", "x2"),
	}}
	queries := []JudgedQuery{
		{ID: "good", Query: "good", RelevantDocs: []string{"d1"}},
		{ID: "empty", Query: "bad", RelevantDocs: nil},
	}

	report, err := Evaluate(context.Background(), s, queries, []int{5}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(report.SkippedQueries) != 1 || report.SkippedQueries[0] != "empty" {
		t.Fatalf("skipped = %v, want [empty]", report.SkippedQueries)
	}
	if len(report.Queries) != 1 {
		t.Fatalf("evaluated = %d, want 1", len(report.Queries))
	}
	// The skipped query must not drag the averages down.
	if !almostEqual(report.MRR, 1.0) {
		t.Errorf("MRR = %v, want 1.0", report.MRR)
	}
	if !almostEqual(report.MAP, 1.0) {
		t.Errorf("MAP = %v, want 1.0", report.MAP)
	}
}

func TestNoRelevantRetrievedYieldsZeroMetrics(t *testing.T) {
	s := &fixedSearcher{results: map[string][]search.Result{
		"miss": ranked("x1", "x2", "x3"),
	}}
	queries := []JudgedQuery{
		{ID: "miss", Query: "miss", RelevantDocs: []string{"d9"}},
	}

	report, err := Evaluate(context.Background(), s, queries, []int{5}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	qm := report.Queries[0]
	if qm.ReciprocalRank != 0 || qm.AveragePrecision != 0 {
		t.Errorf("RR = %v AP = %v, want both 0", qm.ReciprocalRank, qm.AveragePrecision)
	}
	if qm.PrecisionAt[5] != 0 || qm.RecallAt[5] != 0 {
		t.Errorf("P@5 = %v R@5 = %v, want both 0", qm.PrecisionAt[5], qm.RecallAt[5])
	}
}

func TestMeanAcrossQueries(t *testing.T) {
	s := &fixedSearcher{results: map[string][]search.Result{
		"a": ranked("d1", "x1"),
		"b": ranked("x1", "d2"),
	}}
	queries := []JudgedQuery{
		{ID: "a", Query: "a", RelevantDocs: []string{"d1"}},
		{ID: "b", Query: "b", RelevantDocs: []string{"d2"}},
	}

	report, err := Evaluate(context.Background(), s, queries, []int{2}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// RR is 1.0 for the first query and 0.5 for the second.
	if !almostEqual(report.MRR, 0.75) {
		t.Errorf("MRR = %v, want 0.75", report.MRR)
	}
	if !almostEqual(report.MeanPrecisionAt[2], 0.5) {
		t.Errorf("mean P@2 = %v, want 0.5", report.MeanPrecisionAt[2])
	}
	if !almostEqual(report.MeanRecallAt[2], 1.0) {
		t.Errorf("mean R@2 = %v, want 1.0", report.MeanRecallAt[2])
	}
}

func TestCutoffBeyondEngineMaximumRejected(t *testing.T) {
	s := &fixedSearcher{results: map[string][]search.Result{
		"a": ranked("d1"),
	}}
	queries := []JudgedQuery{
		{ID: "a", Query: "a", RelevantDocs: []string{"d1"}},
	}

	// MaxTopK is 100, so P@200 would be computed over a truncated list.
	_, err := Evaluate(context.Background(), s, queries, []int{10, 200}, nil)
	if err == nil {
		t.Fatal("expected error for cutoff above the engine maximum")
	}
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}

	if _, err := Evaluate(context.Background(), s, queries, []int{0, 5}, nil); err == nil {
		t.Fatal("expected error for non-positive cutoff")
	}
}

func TestLoadQueries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.yaml")
	content := `queries:
  - id: q1
    query: "marriage customs"
    relevant_docs: ["pg100", "pg200"]
  - id: q2
    query: "whaling voyages"
    relevant_docs: []
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	queries, err := LoadQueries(path)
	if err != nil {
		t.Fatalf("LoadQueries: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("got %d queries, want 2", len(queries))
	}
	if queries[0].ID != "q1" || len(queries[0].RelevantDocs) != 2 {
		t.Errorf("unexpected first query: %+v", queries[0])
	}
	if len(queries[1].RelevantDocs) != 0 {
		t.Errorf("expected empty relevant set for q2")
	}
}

func TestLoadQueriesRejectsMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.yaml")
	content := `queries:
  - id: ""
    query: "orphaned"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadQueries(path); err == nil {
		t.Fatal("expected error for query without id")
	}
}
