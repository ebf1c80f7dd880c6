// Package cache provides a Redis-backed query result cache with
// singleflight collapsing of concurrent identical queries. The cache is an
// optional accelerator: every error path degrades to computing the result.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/gutensearch/gutensearch/internal/analyzer"
	"github.com/gutensearch/gutensearch/internal/search"
	"github.com/gutensearch/gutensearch/pkg/config"
	"github.com/gutensearch/gutensearch/pkg/metrics"
	pkgredis "github.com/gutensearch/gutensearch/pkg/redis"
)

const keyPrefix = "search:"

// QueryCache caches ranked results per normalized query and top_k.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	met    *metrics.Metrics
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a QueryCache over an established Redis client. met may be nil.
func New(client *pkgredis.Client, cfg config.RedisConfig, met *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
		met:    met,
	}
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.met != nil {
		c.met.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.met != nil {
		c.met.CacheMissesTotal.Inc()
	}
}

// Get returns cached results for the query, if present.
func (c *QueryCache) Get(ctx context.Context, query string, topK int) ([]search.Result, bool) {
	key := c.buildKey(query, topK)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var results []search.Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return results, true
}

// Set stores results with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, query string, topK int, results []search.Result) {
	key := c.buildKey(query, topK)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached results or computes and caches them, with
// concurrent identical queries collapsed into one computation. The second
// return value reports whether the result came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	topK int,
	computeFn func() ([]search.Result, error),
) ([]search.Result, bool, error) {
	if results, ok := c.Get(ctx, query, topK); ok {
		return results, true, nil
	}
	key := c.buildKey(query, topK)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if results, ok := c.Get(ctx, query, topK); ok {
			return results, nil
		}
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, topK, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]search.Result), false, nil
}

// InvalidateAll drops every cached query result. Called after a new index
// is published so stale rankings never outlive the index they came from.
func (c *QueryCache) InvalidateAll(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns cumulative hit and miss counts.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey normalizes the query through the analyzer so that queries which
// tokenize identically share a cache entry.
func (c *QueryCache) buildKey(query string, topK int) string {
	terms := analyzer.Analyze(query, analyzer.English)
	raw := fmt.Sprintf("%s:top_k=%d", strings.Join(terms, ","), topK)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
