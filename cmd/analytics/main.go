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
	"github.com/gutensearch/gutensearch/internal/analytics/snapshot"
	"github.com/gutensearch/gutensearch/pkg/config"
	"github.com/gutensearch/gutensearch/pkg/kafka"
	"github.com/gutensearch/gutensearch/pkg/logger"
	"github.com/gutensearch/gutensearch/pkg/metrics"
	"github.com/gutensearch/gutensearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	snapshotEvery := flag.Duration("snapshot-every", time.Minute, "interval between stats snapshots")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Error("analytics requires kafka brokers to be configured")
		os.Exit(1)
	}
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

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.QueryEvents, analytics.HandleEvent(agg))

	if cfg.Postgres.Host != "" {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		snapshot.NewStore(db).StartPeriodicSave(ctx, agg, *snapshotEvery)
	} else {
		slog.Warn("postgres not configured, stats will not be persisted")
	}

	// Periodic stats log regardless of persistence.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := agg.Stats()
				slog.Info("aggregated stats",
					"total_queries", stats.TotalQueries,
					"zero_results", stats.ZeroResultCount,
					"cache_hits", stats.CacheHits,
					"p95_latency_ms", stats.P95LatencyMs,
					"queries_per_minute", fmt.Sprintf("%.1f", stats.QueriesPerMinute),
				)
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.Info("analytics service ready, consuming from kafka",
		"topic", cfg.Kafka.QueryEvents,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
		slog.Error("consumer error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
