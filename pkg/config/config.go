// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Corpus, Indexer, Search, Eval, Redis, Kafka, Postgres).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Eval     EvalConfig     `yaml:"eval"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CorpusConfig locates the document corpus on disk.
type CorpusConfig struct {
	Dir             string `yaml:"dir"`
	DefaultLanguage string `yaml:"defaultLanguage"`
	PreviewBytes    int    `yaml:"previewBytes"`
}

// IndexerConfig controls batch sizing, worker parallelism, checkpointing,
// and where index artifacts live.
type IndexerConfig struct {
	IndexDir        string `yaml:"indexDir"`
	StagingDir      string `yaml:"stagingDir"`
	BatchSize       int    `yaml:"batchSize"`
	Workers         int    `yaml:"workers"`
	WorkerPercent   int    `yaml:"workerPercent"`
	CheckpointEvery int    `yaml:"checkpointEvery"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	DefaultTopK  int `yaml:"defaultTopK"`
	MaxTopK      int `yaml:"maxTopK"`
	SnippetBytes int `yaml:"snippetBytes"`
}

// EvalConfig locates the judged-query set and the cutoffs to report.
type EvalConfig struct {
	QueriesPath string `yaml:"queriesPath"`
	KValues     []int  `yaml:"kValues"`
}

// RedisConfig holds Redis connection and query-cache parameters. An empty
// Addr disables the query cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds broker and topic settings for the analytics pipeline.
// Empty Brokers disables analytics publishing.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	QueryEvents   string   `yaml:"queryEventsTopic"`
}

// PostgresConfig holds PostgreSQL connection parameters for analytics
// snapshots. An empty Host disables snapshot persistence.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Dir:             "data/corpus",
			DefaultLanguage: "unknown",
			PreviewBytes:    512,
		},
		Indexer: IndexerConfig{
			IndexDir:        "data/index",
			StagingDir:      "data/index/.staging",
			BatchSize:       500,
			WorkerPercent:   70,
			CheckpointEvery: 20,
		},
		Search: SearchConfig{
			DefaultTopK:  10,
			MaxTopK:      100,
			SnippetBytes: 160,
		},
		Eval: EvalConfig{
			QueriesPath: "configs/judged_queries.yaml",
			KValues:     []int{5, 10, 20},
		},
		Redis: RedisConfig{
			Addr:     "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       nil,
			ConsumerGroup: "gutensearch-analytics",
			QueryEvents:   "query-events",
		},
		Postgres: PostgresConfig{
			Host:            "",
			Port:            5432,
			Database:        "gutensearch",
			User:            "gutensearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads GS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GS_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("GS_INDEX_DIR"); v != "" {
		cfg.Indexer.IndexDir = v
	}
	if v := os.Getenv("GS_INDEXER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.BatchSize = n
		}
	}
	if v := os.Getenv("GS_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("GS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("GS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("GS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("GS_POSTGRES_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = n
		}
	}
	if v := os.Getenv("GS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("GS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("GS_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = n
		}
	}
}
