// Package cache memoizes search results in Redis. Entries are keyed by the
// normalized query and the index version, so a refreshed index never serves
// results computed against its predecessor.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/redis"
)

const keyPrefix = "rsearch:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// entry is what is stored per key. It holds no text from the query that
// produced it; callers get query text and messages from their own query.
type entry struct {
	Outcome      evaluator.Outcome `json:"outcome"`
	IndexVersion string            `json:"index_version"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, version string, q *parser.Query) (*executor.SearchResult, bool) {
	key := buildKey(version, q)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var cached entry
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", q.String(), "key", key)
	return executor.Decorate(q, cached.Outcome, cached.IndexVersion), true
}

func (c *QueryCache) Set(ctx context.Context, version string, q *parser.Query, result *executor.SearchResult) {
	key := buildKey(version, q)
	data, err := json.Marshal(entry{Outcome: result.Outcome, IndexVersion: result.IndexVersion})
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for q or computes and stores it.
// Concurrent misses for the same key share one computation, and each caller
// gets the shared outcome decorated with its own query. The bool result
// reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	version string,
	q *parser.Query,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, version, q); ok {
		return result, true, nil
	}
	key := buildKey(version, q)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, version, q, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	shared := val.(*executor.SearchResult)
	return executor.Decorate(q, shared.Outcome, shared.IndexVersion), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the normalized query so that inputs differing only in case
// or stripped characters share an entry.
func buildKey(version string, q *parser.Query) string {
	hash := sha256.Sum256([]byte(version + "|" + q.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
