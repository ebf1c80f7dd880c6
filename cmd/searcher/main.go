package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gutensearch/gutensearch/internal/analytics"
	"github.com/gutensearch/gutensearch/internal/search"
	"github.com/gutensearch/gutensearch/internal/search/cache"
	"github.com/gutensearch/gutensearch/internal/store"
	"github.com/gutensearch/gutensearch/pkg/config"
	"github.com/gutensearch/gutensearch/pkg/kafka"
	"github.com/gutensearch/gutensearch/pkg/logger"
	"github.com/gutensearch/gutensearch/pkg/metrics"
	"github.com/gutensearch/gutensearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	indexDir := flag.String("index", "", "index directory (overrides config)")
	query := flag.String("query", "", "run a single query and exit")
	topK := flag.Int("top-k", 0, "number of results to return")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexDir != "" {
		cfg.Indexer.IndexDir = *indexDir
	}
	if *topK <= 0 {
		*topK = cfg.Search.DefaultTopK
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	met := metrics.New()
	if cfg.Metrics.Enabled && *query == "" {
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

	ix, err := store.Load(cfg.Indexer.IndexDir)
	if err != nil {
		slog.Error("failed to load index", "dir", cfg.Indexer.IndexDir, "error", err)
		os.Exit(1)
	}
	engine := search.NewEngine(cfg.Search, met)
	engine.Publish(ix)
	slog.Info("index loaded",
		"dir", cfg.Indexer.IndexDir,
		"documents", ix.Metadata().DocumentsCount,
		"vocabulary", ix.Metadata().VocabularySize,
	)

	var queryCache *cache.QueryCache
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, running without query cache", "error", err)
		} else {
			defer client.Close()
			queryCache = cache.New(client, cfg.Redis, met)
			if err := queryCache.InvalidateAll(ctx); err != nil {
				slog.Warn("failed to invalidate query cache", "error", err)
			}
		}
	}

	var collector *analytics.Collector
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.QueryEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
	}

	run := func(q string) {
		started := time.Now()
		results, cached, err := execute(ctx, engine, queryCache, q, *topK)
		latency := time.Since(started)
		if err != nil {
			fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
			return
		}
		printResults(q, results)
		if collector != nil {
			topScore := 0.0
			terms := []string(nil)
			if len(results) > 0 {
				topScore = results[0].Score
				terms = results[0].MatchingTerms
			}
			collector.TrackQuery(analytics.QueryEvent{
				Query:     q,
				Terms:     terms,
				Returned:  len(results),
				TopScore:  topScore,
				LatencyMs: latency.Milliseconds(),
				CacheHit:  cached,
			})
		}
	}

	if *query != "" {
		run(*query)
		return
	}

	// Interactive mode: one query per line.
	fmt.Fprintln(os.Stderr, "enter queries, one per line (ctrl-d to exit)")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		run(q)
		if ctx.Err() != nil {
			break
		}
	}
}

func execute(ctx context.Context, engine *search.Engine, qc *cache.QueryCache, q string, topK int) ([]search.Result, bool, error) {
	if qc == nil {
		results, err := engine.Search(ctx, q, topK)
		return results, false, err
	}
	return qc.GetOrCompute(ctx, q, topK, func() ([]search.Result, error) {
		return engine.Search(ctx, q, topK)
	})
}

func printResults(q string, results []search.Result) {
	out := struct {
		Query   string          `json:"query"`
		Count   int             `json:"count"`
		Results []search.Result `json:"results"`
	}{Query: q, Count: len(results), Results: results}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		slog.Error("failed to encode results", "error", err)
	}
}
