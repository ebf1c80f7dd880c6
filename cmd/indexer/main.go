package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gutensearch/gutensearch/internal/analytics"
	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/internal/index"
	"github.com/gutensearch/gutensearch/internal/store"
	"github.com/gutensearch/gutensearch/pkg/config"
	"github.com/gutensearch/gutensearch/pkg/kafka"
	"github.com/gutensearch/gutensearch/pkg/logger"
	"github.com/gutensearch/gutensearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusDir := flag.String("corpus", "", "corpus directory (overrides config)")
	indexDir := flag.String("index", "", "index output directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusDir != "" {
		cfg.Corpus.Dir = *corpusDir
	}
	if *indexDir != "" {
		cfg.Indexer.IndexDir = *indexDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	met := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			slog.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := corpus.NewDirSource(cfg.Corpus.Dir, cfg.Corpus.PreviewBytes)
	if err != nil {
		slog.Error("failed to open corpus", "dir", cfg.Corpus.Dir, "error", err)
		os.Exit(1)
	}
	slog.Info("corpus opened",
		"dir", cfg.Corpus.Dir,
		"documents", src.Len(),
		"size_bytes", src.SizeBytes(),
	)

	staging := store.NewStaging(cfg.Indexer.StagingDir)
	builder := index.NewBuilder(cfg.Indexer, staging, met)

	// Progress reporting while the build runs.
	progressCtx, cancelProgress := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st := builder.Status()
				if st.State == index.StateRunning {
					slog.Info("build progress",
						"batches_done", st.BatchesDone,
						"batches_total", st.BatchesTotal,
						"docs_indexed", st.DocsIndexed,
						"docs_skipped", st.DocsSkipped,
					)
				}
			case <-progressCtx.Done():
				return
			}
		}
	}()

	start := time.Now()
	ix, err := builder.Build(ctx, src)
	cancelProgress()
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}

	if err := store.Save(ix, cfg.Indexer.IndexDir); err != nil {
		slog.Error("failed to save index", "dir", cfg.Indexer.IndexDir, "error", err)
		os.Exit(1)
	}
	meta := ix.Metadata()
	slog.Info("index saved",
		"dir", cfg.Indexer.IndexDir,
		"documents", meta.DocumentsCount,
		"skipped", meta.DocumentsSkipped,
		"vocabulary", meta.VocabularySize,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.QueryEvents)
		defer producer.Close()
		ev := analytics.BuildEvent{
			Type:        analytics.EventBuild,
			DocsIndexed: meta.DocumentsCount,
			DocsSkipped: meta.DocumentsSkipped,
			Batches:     builder.Status().BatchesDone,
			Vocabulary:  meta.VocabularySize,
			DurationMs:  time.Since(start).Milliseconds(),
			Timestamp:   time.Now().UTC(),
		}
		if err := producer.Publish(context.Background(), kafka.Event{Key: "build", Value: ev}); err != nil {
			slog.Warn("failed to publish build event", "error", err)
		}
	}
}
