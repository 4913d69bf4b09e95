// Package cache memoises search responses in Redis. Keys include the index
// snapshot version, so a new commit makes older entries unreachable even
// before they are invalidated.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/resilience"
)

const keyPrefix = "tdtsearch:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cacheable response.
type Key struct {
	Version uint64
	Query   string
	Limit   int
}

func (k Key) String() string {
	raw := fmt.Sprintf("%s|limit=%d", k.Query, k.Limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sv%d:%x", keyPrefix, k.Version, hash[:16])
}

type QueryCache[T any] struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New[T any](backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache[T] {
	return &QueryCache[T]{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get reports a miss for absent keys and for any backend or decode error.
func (c *QueryCache[T]) Get(ctx context.Context, key Key) (T, bool) {
	var zero T
	k := key.String()
	data, err := c.backend.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.failed("get", k, err)
		}
		c.miss()
		return zero, false
	}
	var value T
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return zero, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", key.Query, "key", k)
	return value, true
}

func (c *QueryCache[T]) Set(ctx context.Context, key Key, value T) {
	k := key.String()
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.backend.Set(ctx, k, data, c.ttl); err != nil {
		c.failed("set", k, err)
	}
}

// GetOrCompute returns the cached value for key or computes and stores it.
// Concurrent callers with the same key share one computation. The bool
// reports a cache hit.
func (c *QueryCache[T]) GetOrCompute(ctx context.Context, key Key, compute func() (T, error)) (T, bool, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		value, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, value)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate drops every cached response.
func (c *QueryCache[T]) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache[T]) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache[T]) failed(op, key string, err error) {
	reason := failureReason(err)
	c.logger.Error("cache "+op+" failed", "key", key, "reason", reason, "error", err)
	if c.metrics != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues(op, reason).Inc()
	}
}

func failureReason(err error) string {
	switch {
	case resilience.IsTimeout(err):
		return "timeout"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "error"
	}
}

func (c *QueryCache[T]) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
