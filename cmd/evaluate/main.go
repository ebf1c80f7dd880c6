package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gutensearch/gutensearch/internal/eval"
	"github.com/gutensearch/gutensearch/internal/search"
	"github.com/gutensearch/gutensearch/internal/store"
	"github.com/gutensearch/gutensearch/pkg/config"
	"github.com/gutensearch/gutensearch/pkg/logger"
	"github.com/gutensearch/gutensearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	indexDir := flag.String("index", "", "index directory (overrides config)")
	queriesPath := flag.String("queries", "", "judged queries YAML (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexDir != "" {
		cfg.Indexer.IndexDir = *indexDir
	}
	if *queriesPath != "" {
		cfg.Eval.QueriesPath = *queriesPath
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	met := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ix, err := store.Load(cfg.Indexer.IndexDir)
	if err != nil {
		slog.Error("failed to load index", "dir", cfg.Indexer.IndexDir, "error", err)
		os.Exit(1)
	}
	engine := search.NewEngine(cfg.Search, met)
	engine.Publish(ix)

	queries, err := eval.LoadQueries(cfg.Eval.QueriesPath)
	if err != nil {
		slog.Error("failed to load judged queries", "path", cfg.Eval.QueriesPath, "error", err)
		os.Exit(1)
	}
	slog.Info("evaluating",
		"queries", len(queries),
		"k_values", cfg.Eval.KValues,
		"documents", ix.Metadata().DocumentsCount,
	)

	report, err := eval.Evaluate(ctx, engine, queries, cfg.Eval.KValues, met)
	if err != nil {
		slog.Error("evaluation failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		slog.Error("failed to encode report", "error", err)
		os.Exit(1)
	}
}
