// Package cache provides a Redis-backed query result cache. Keys derive
// from the evaluated plan rather than the raw query string, so reordered
// but equivalent queries share an entry. A single-flight group keeps one
// replica from computing the same missing entry concurrently, and a
// circuit breaker stops a dead Redis from taxing every query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/quorumsearch/quorumsearch/internal/searcher/executor"
	"github.com/quorumsearch/quorumsearch/pkg/config"
	"github.com/quorumsearch/quorumsearch/pkg/metrics"
	pkgredis "github.com/quorumsearch/quorumsearch/pkg/redis"
	"github.com/quorumsearch/quorumsearch/pkg/resilience"
)

const keyPrefix = "search:"

// Key identifies one evaluated query. Term order does not matter.
type Key struct {
	Terms     []string
	Exclude   []string
	Phrase    string
	Threshold float64
	Limit     int
	Ranker    string
}

type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. m may be nil, which disables counter updates.
func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for key, if present.
func (c *QueryCache) Get(ctx context.Context, key Key) (*executor.SearchResult, bool) {
	k := buildKey(key)
	var data string
	err := c.breaker.Execute(func() error {
		value, getErr := c.client.Get(ctx, k)
		if getErr != nil {
			if pkgredis.IsNilError(getErr) {
				// A miss is not a Redis failure.
				return nil
			}
			return getErr
		}
		data = value
		return nil
	})
	c.observeBreaker()
	if err != nil {
		c.logger.Warn("cache get failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	if data == "" {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "key", k)
	return &result, true
}

// Set stores result under key with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, key Key, result *executor.SearchResult) {
	k := buildKey(key)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, k, data, c.cfg.CacheTTL)
	})
	c.observeBreaker()
	if err != nil {
		c.logger.Warn("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached result for key or computes and stores it.
// Concurrent callers with the same key share one computation. The second
// return reports whether the result came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(buildKey(key), func() (interface{}, error) {
		if result, ok := c.Get(ctx, key); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) observeBreaker() {
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("redis-cache").
			Set(float64(c.breaker.State()))
	}
}

func buildKey(key Key) string {
	terms := append([]string(nil), key.Terms...)
	sort.Strings(terms)
	exclude := append([]string(nil), key.Exclude...)
	sort.Strings(exclude)
	raw := fmt.Sprintf("%s|not:%s|phrase:%s|t=%.4f|limit=%d|ranker=%s",
		strings.Join(terms, ","), strings.Join(exclude, ","),
		key.Phrase, key.Threshold, key.Limit, key.Ranker)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
