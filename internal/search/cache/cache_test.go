package cache

import (
	"testing"
	"time"

	"github.com/gutensearch/gutensearch/pkg/config"
)

func testCache() *QueryCache {
	return New(nil, config.RedisConfig{CacheTTL: time.Minute}, nil)
}

func TestBuildKeyNormalizesQueries(t *testing.T) {
	c := testCache()
	// Queries that tokenize identically must share an entry.
	a := c.buildKey("Marriage!", 10)
	b := c.buildKey("marriage", 10)
	if a != b {
		t.Errorf("equivalent queries got different keys: %s vs %s", a, b)
	}
}

func TestBuildKeyDistinguishesTopK(t *testing.T) {
	c := testCache()
	if c.buildKey("marriage", 10) == c.buildKey("marriage", 20) {
		t.Error("different top_k values must not share a cache entry")
	}
}

func TestBuildKeyDistinguishesQueries(t *testing.T) {
	c := testCache()
	if c.buildKey("marriage", 10) == c.buildKey("science", 10) {
		t.Error("different queries must not share a cache entry")
	}
}
