package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gutensearch/gutensearch/internal/analyzer"
	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/pkg/config"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
	"github.com/gutensearch/gutensearch/pkg/metrics"
)

// BuildState is the lifecycle phase of the most recent build.
type BuildState string

const (
	StateIdle     BuildState = "idle"
	StateRunning  BuildState = "in_progress"
	StateComplete BuildState = "complete"
	StateFailed   BuildState = "failed"
)

// BuildStatus is a progress snapshot, readable while a build runs.
type BuildStatus struct {
	State        BuildState `json:"status"`
	BatchesDone  int        `json:"batches_done"`
	BatchesTotal int        `json:"batches_total"`
	DocsIndexed  int        `json:"docs_indexed"`
	DocsSkipped  int        `json:"docs_skipped"`
}

// CheckpointStore persists a partially merged build so an interrupted one can
// resume at batch granularity. Implemented by the store package's Staging.
type CheckpointStore interface {
	// SaveCheckpoint persists the merged-so-far index together with the
	// number of fully merged batches and the corpus fingerprint.
	SaveCheckpoint(ix *Index, batchesDone int, fingerprint string) error
	// LoadCheckpoint returns the staged index and merged batch count for a
	// matching fingerprint, or (nil, 0, nil) when no usable checkpoint
	// exists.
	LoadCheckpoint(fingerprint string) (*Index, int, error)
	// ClearCheckpoint removes staged artifacts after a completed build.
	ClearCheckpoint() error
}

// A batch is retried wholesale when a worker panics; after this many
// attempts the build fails.
const maxBatchAttempts = 3

// Builder runs parallel, shared-nothing index construction. Each worker owns
// a private partial index for its batch; the single-threaded merger is the
// only place partial results meet.
type Builder struct {
	cfg         config.IndexerConfig
	checkpoints CheckpointStore
	met         *metrics.Metrics
	logger      *slog.Logger

	mu     sync.Mutex
	status BuildStatus
}

// NewBuilder creates a Builder. checkpoints and met may be nil, which
// disables resumability and instrumentation respectively.
func NewBuilder(cfg config.IndexerConfig, checkpoints CheckpointStore, met *metrics.Metrics) *Builder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 20
	}
	return &Builder{
		cfg:         cfg,
		checkpoints: checkpoints,
		met:         met,
		logger:      slog.Default().With("component", "index-builder"),
		status:      BuildStatus{State: StateIdle},
	}
}

// Status returns the current build progress. Safe to call concurrently with
// Build; it never blocks on indexing work.
func (b *Builder) Status() BuildStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Workers resolves the worker count: an explicit setting wins, otherwise a
// fixed fraction of the available execution units.
func (b *Builder) Workers() int {
	if b.cfg.Workers > 0 {
		return b.cfg.Workers
	}
	percent := b.cfg.WorkerPercent
	if percent <= 0 || percent > 100 {
		percent = 70
	}
	n := runtime.GOMAXPROCS(0) * percent / 100
	if n < 1 {
		n = 1
	}
	return n
}

type batchJob struct {
	idx  int
	docs []*corpus.Document
	// skipped counts source positions in this batch that failed to parse.
	skipped int
}

type batchResult struct {
	idx     int
	terms   map[string]PostingList
	docs    []DocInfo
	tokens  int64
	skipped int
}

// Build constructs an Index from the corpus. It is an all-or-nothing
// operation: per-document parse failures are skipped and counted, while a
// dead corpus source or an empty result fails the build. Only one build may
// run at a time; concurrent calls get ErrBuildInProgress.
func (b *Builder) Build(ctx context.Context, src corpus.Source) (*Index, error) {
	b.mu.Lock()
	if b.status.State == StateRunning {
		b.mu.Unlock()
		return nil, apperrors.ErrBuildInProgress
	}
	batchesTotal := (src.Len() + b.cfg.BatchSize - 1) / b.cfg.BatchSize
	b.status = BuildStatus{State: StateRunning, BatchesTotal: batchesTotal}
	b.mu.Unlock()

	if b.met != nil {
		b.met.BuildInProgress.Set(1)
		defer b.met.BuildInProgress.Set(0)
	}
	start := time.Now()

	idx, err := b.run(ctx, src, batchesTotal)
	b.mu.Lock()
	if err != nil {
		b.status.State = StateFailed
	} else {
		b.status.State = StateComplete
	}
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if b.met != nil {
		b.met.BuildDuration.Observe(time.Since(start).Seconds())
		b.met.IndexVocabularySize.Set(float64(idx.Metadata().VocabularySize))
		b.met.IndexDocumentCount.Set(float64(idx.Metadata().DocumentsCount))
	}
	b.logger.Info("index build complete",
		"documents", idx.Metadata().DocumentsCount,
		"skipped", idx.Metadata().DocumentsSkipped,
		"vocabulary", idx.Metadata().VocabularySize,
		"avgdl", idx.Metadata().AverageDocumentLength,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return idx, nil
}

func (b *Builder) run(ctx context.Context, src corpus.Source, batchesTotal int) (*Index, error) {
	state := newBuildState()
	startBatch := b.resume(src, state)
	b.setProgress(startBatch, state)

	workers := b.Workers()
	b.logger.Info("starting index build",
		"batches_total", batchesTotal,
		"batch_size", b.cfg.BatchSize,
		"workers", workers,
		"resume_from_batch", startBatch,
	)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan batchJob)
	results := make(chan batchResult, workers)

	// Feeder: the only goroutine touching the corpus iterator. It skips the
	// source positions covered by already-merged batches, drops documents
	// whose IDs were already indexed, and counts parse failures per batch.
	seen := make(map[string]struct{}, len(state.docs))
	for id := range state.docs {
		seen[id] = struct{}{}
	}
	g.Go(func() error {
		defer close(jobs)
		for pos := 0; pos < startBatch*b.cfg.BatchSize; pos++ {
			if _, err := src.Next(); err == io.EOF {
				return nil
			}
		}
		for batchIdx := startBatch; batchIdx < batchesTotal; batchIdx++ {
			job := batchJob{idx: batchIdx}
			for i := 0; i < b.cfg.BatchSize; i++ {
				doc, err := src.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					if errors.Is(err, apperrors.ErrDocumentParse) {
						b.logger.Warn("skipping unparseable document", "error", err)
						job.skipped++
						continue
					}
					return apperrors.Newf(apperrors.ErrCorpusUnavailable, "reading corpus: %v", err)
				}
				if _, dup := seen[doc.ID]; dup {
					b.logger.Warn("skipping duplicate document id", "doc_id", doc.ID)
					job.skipped++
					continue
				}
				seen[doc.ID] = struct{}{}
				job.docs = append(job.docs, doc)
			}
			if len(job.docs) == 0 && job.skipped == 0 {
				continue
			}
			select {
			case jobs <- job:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for job := range jobs {
				res, err := b.processBatch(job)
				if err != nil {
					return err
				}
				select {
				case results <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	done := make(chan struct{})
	var groupErr error
	go func() {
		groupErr = g.Wait()
		close(results)
		close(done)
	}()

	// Single-threaded merge. Results are buffered until their batch index
	// is next in line so the merged index, and every checkpoint, covers a
	// contiguous prefix of the corpus regardless of worker completion order.
	pending := make(map[int]batchResult)
	next := startBatch
	for res := range results {
		pending[res.idx] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			state.merge(r)
			next++
			b.setProgress(next, state)
			if b.met != nil {
				b.met.BatchesMergedTotal.Inc()
				b.met.DocsIndexedTotal.Add(float64(len(r.docs)))
				b.met.DocsSkippedTotal.Add(float64(r.skipped))
			}
			b.logger.Debug("batch merged", "batch", next, "of", batchesTotal)
			b.maybeCheckpoint(src, state, next, batchesTotal, startBatch)
		}
	}
	<-done
	if groupErr != nil {
		return nil, groupErr
	}
	if len(state.docs) == 0 {
		return nil, apperrors.New(apperrors.ErrCorpusUnavailable, "no documents could be indexed")
	}

	idx := state.finalize(src.SizeBytes(), time.Now().UTC())
	if b.checkpoints != nil {
		if err := b.checkpoints.ClearCheckpoint(); err != nil {
			b.logger.Warn("failed to clear build checkpoint", "error", err)
		}
	}
	return idx, nil
}

// processBatch tokenizes one batch into a private partial index. A panic in
// worker code is reported and the batch retried wholesale.
func (b *Builder) processBatch(job batchJob) (res batchResult, err error) {
	for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
		res, err = b.tryBatch(job)
		if err == nil {
			return res, nil
		}
		b.logger.Error("batch worker crashed, requeueing batch",
			"batch", job.idx,
			"attempt", attempt,
			"error", err,
		)
	}
	return batchResult{}, fmt.Errorf("batch %d failed after %d attempts: %w", job.idx, maxBatchAttempts, err)
}

func (b *Builder) tryBatch(job batchJob) (res batchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	res = batchResult{
		idx:     job.idx,
		terms:   make(map[string]PostingList),
		docs:    make([]DocInfo, 0, len(job.docs)),
		skipped: job.skipped,
	}
	for _, doc := range job.docs {
		tokens := analyzer.Analyze(doc.Title+" "+doc.Text, doc.Language)
		freqs := make(map[string]int, len(tokens))
		for _, term := range tokens {
			freqs[term]++
		}
		for term, freq := range freqs {
			res.terms[term] = append(res.terms[term], Posting{DocID: doc.ID, Frequency: freq})
		}
		res.docs = append(res.docs, DocInfo{
			ID:             doc.ID,
			Title:          doc.Title,
			Language:       doc.Language,
			TokenCount:     len(tokens),
			RawLengthBytes: doc.RawLengthBytes,
			Preview:        doc.Preview,
		})
		res.tokens += int64(len(tokens))
	}
	return res, nil
}

func (b *Builder) maybeCheckpoint(src corpus.Source, state *buildState, merged, batchesTotal, startBatch int) {
	if b.checkpoints == nil || merged >= batchesTotal {
		return
	}
	if (merged-startBatch)%b.cfg.CheckpointEvery != 0 {
		return
	}
	snapshot := state.snapshot(src.SizeBytes())
	if err := b.checkpoints.SaveCheckpoint(snapshot, merged, src.Fingerprint()); err != nil {
		b.logger.Warn("failed to write build checkpoint", "batches_done", merged, "error", err)
		return
	}
	if b.met != nil {
		b.met.CheckpointsTotal.Inc()
	}
	b.logger.Info("build checkpoint written", "batches_done", merged)
}

// resume preloads state from a staged checkpoint matching the corpus
// fingerprint and returns the first batch still to be merged.
func (b *Builder) resume(src corpus.Source, state *buildState) int {
	if b.checkpoints == nil {
		return 0
	}
	staged, batchesDone, err := b.checkpoints.LoadCheckpoint(src.Fingerprint())
	if err != nil {
		b.logger.Warn("ignoring unusable build checkpoint", "error", err)
		return 0
	}
	if staged == nil {
		return 0
	}
	state.preload(staged)
	b.logger.Info("resuming build from checkpoint",
		"batches_done", batchesDone,
		"documents", len(state.docs),
	)
	return batchesDone
}

func (b *Builder) setProgress(batchesDone int, state *buildState) {
	b.mu.Lock()
	b.status.BatchesDone = batchesDone
	b.status.DocsIndexed = len(state.docs)
	b.status.DocsSkipped = state.skipped
	b.mu.Unlock()
}

// buildState is the merger's private accumulation of partial indices.
type buildState struct {
	terms       map[string]PostingList
	docs        map[string]DocInfo
	totalTokens int64
	skipped     int
}

func newBuildState() *buildState {
	return &buildState{
		terms: make(map[string]PostingList),
		docs:  make(map[string]DocInfo),
	}
}

func (s *buildState) merge(r batchResult) {
	for term, postings := range r.terms {
		s.terms[term] = append(s.terms[term], postings...)
	}
	for _, d := range r.docs {
		s.docs[d.ID] = d
	}
	s.totalTokens += r.tokens
	s.skipped += r.skipped
}

func (s *buildState) preload(staged *Index) {
	for _, term := range staged.Vocabulary() {
		s.terms[term] = append(PostingList(nil), staged.Postings(term)...)
	}
	for _, d := range staged.Documents() {
		s.docs[d.ID] = d
		s.totalTokens += int64(d.TokenCount)
	}
	s.skipped = staged.Metadata().DocumentsSkipped
}

// snapshot produces a persistable view of the merged-so-far state for
// checkpointing. It shares no posting slices with the live state.
func (s *buildState) snapshot(corpusBytes int64) *Index {
	terms := make(map[string]PostingList, len(s.terms))
	for term, postings := range s.terms {
		terms[term] = append(PostingList(nil), postings...)
	}
	docs := make(map[string]DocInfo, len(s.docs))
	for id, d := range s.docs {
		docs[id] = d
	}
	return FromParts(terms, s.idf(), docs, Metadata{
		DocumentsSkipped:      s.skipped,
		AverageDocumentLength: s.avgdl(),
		CorpusSizeBytes:       corpusBytes,
		BuildTimestamp:        time.Now().UTC(),
	})
}

// finalize computes average document length and per-term IDF, then freezes
// the state into an immutable Index.
func (s *buildState) finalize(corpusBytes int64, builtAt time.Time) *Index {
	return FromParts(s.terms, s.idf(), s.docs, Metadata{
		DocumentsSkipped:      s.skipped,
		AverageDocumentLength: s.avgdl(),
		CorpusSizeBytes:       corpusBytes,
		BuildTimestamp:        builtAt,
	})
}

func (s *buildState) avgdl() float64 {
	if len(s.docs) == 0 {
		return 0
	}
	return float64(s.totalTokens) / float64(len(s.docs))
}

// idf computes ln((N - df + 0.5)/(df + 0.5) + 1) per term. With df <= N the
// argument is always above 1, so every weight is positive; values are
// stored as computed, without clamping.
func (s *buildState) idf() map[string]float64 {
	n := float64(len(s.docs))
	out := make(map[string]float64, len(s.terms))
	for term, postings := range s.terms {
		df := float64(len(postings))
		out[term] = math.Log((n-df+0.5)/(df+0.5) + 1)
	}
	return out
}
