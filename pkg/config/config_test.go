package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500", cfg.Indexer.BatchSize)
	}
	if cfg.Indexer.WorkerPercent != 70 {
		t.Errorf("WorkerPercent = %d, want 70", cfg.Indexer.WorkerPercent)
	}
	if cfg.Search.MaxTopK != 100 {
		t.Errorf("MaxTopK = %d, want 100", cfg.Search.MaxTopK)
	}
	if cfg.Redis.Addr != "" || len(cfg.Kafka.Brokers) != 0 || cfg.Postgres.Host != "" {
		t.Error("optional subsystems should be disabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
corpus:
  dir: /data/books
indexer:
  batchSize: 250
  workers: 4
search:
  defaultTopK: 20
redis:
  addr: localhost:6379
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Corpus.Dir != "/data/books" {
		t.Errorf("Corpus.Dir = %s", cfg.Corpus.Dir)
	}
	if cfg.Indexer.BatchSize != 250 || cfg.Indexer.Workers != 4 {
		t.Errorf("Indexer = %+v", cfg.Indexer)
	}
	if cfg.Search.DefaultTopK != 20 {
		t.Errorf("DefaultTopK = %d, want 20", cfg.Search.DefaultTopK)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %s", cfg.Redis.Addr)
	}
	if cfg.Redis.CacheTTL != 60*time.Second {
		t.Errorf("CacheTTL = %v, want default 60s", cfg.Redis.CacheTTL)
	}
	// Untouched sections keep their defaults.
	if cfg.Search.MaxTopK != 100 {
		t.Errorf("MaxTopK = %d, want 100", cfg.Search.MaxTopK)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GS_CORPUS_DIR", "/env/corpus")
	t.Setenv("GS_INDEXER_BATCH_SIZE", "64")
	t.Setenv("GS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("GS_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Corpus.Dir != "/env/corpus" {
		t.Errorf("Corpus.Dir = %s", cfg.Corpus.Dir)
	}
	if cfg.Indexer.BatchSize != 64 {
		t.Errorf("BatchSize = %d, want 64", cfg.Indexer.BatchSize)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "k1:9092" {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %s, want debug", cfg.Logging.Level)
	}
}
