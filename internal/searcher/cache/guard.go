package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/resilience"
)

// Guarded wraps a Backend so that a slow or unreachable Redis costs each
// query at most timeout, and after repeated failures is skipped entirely
// until the breaker's reset timeout elapses. A Redis miss is not a failure.
type Guarded struct {
	backend Backend
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func Guard(backend Backend, timeout time.Duration, cfg resilience.CircuitBreakerConfig) *Guarded {
	cfg.Expected = pkgredis.IsNilError
	return &Guarded{
		backend: backend,
		breaker: resilience.NewCircuitBreaker("query-cache", cfg),
		timeout: timeout,
	}
}

func (g *Guarded) Get(ctx context.Context, key string) (string, error) {
	var out string
	err := g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, "cache get", func(ctx context.Context) error {
			v, err := g.backend.Get(ctx, key)
			out = v
			return err
		})
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (g *Guarded) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, "cache set", func(ctx context.Context) error {
			return g.backend.Set(ctx, key, value, ttl)
		})
	})
}

// FlushByPattern bypasses the breaker: an invalidation must be attempted
// even while reads are being skipped.
func (g *Guarded) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := resilience.WithTimeout(ctx, g.timeout, "cache flush", func(ctx context.Context) error {
		v, err := g.backend.FlushByPattern(ctx, pattern)
		n = v
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// State reports the breaker state for health checks.
func (g *Guarded) State() resilience.State {
	return g.breaker.GetState()
}
