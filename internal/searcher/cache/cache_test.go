package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/redis"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
	fail bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string]string{}}
}

func (m *memBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.ErrNil
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("connection refused")
	}
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type payload struct {
	Hits []string `json:"hits"`
}

func TestGetOrCompute(t *testing.T) {
	c := New[payload](newMemBackend(), time.Minute, nil)
	key := Key{Version: 1, Query: "hurrican", Limit: 10}
	calls := 0
	compute := func() (payload, error) {
		calls++
		return payload{Hits: []string{"D1"}}, nil
	}

	got, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"D1"}, got.Hits)

	got, hit, err = c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"D1"}, got.Hits)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestKeyIncludesVersionAndLimit(t *testing.T) {
	base := Key{Version: 1, Query: "fox", Limit: 10}
	assert.NotEqual(t, base.String(), Key{Version: 2, Query: "fox", Limit: 10}.String())
	assert.NotEqual(t, base.String(), Key{Version: 1, Query: "fox", Limit: 5}.String())
	assert.Equal(t, base.String(), Key{Version: 1, Query: "fox", Limit: 10}.String())
}

func TestComputeErrorNotCached(t *testing.T) {
	c := New[payload](newMemBackend(), time.Minute, nil)
	key := Key{Version: 1, Query: "x", Limit: 1}
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), key, func() (payload, error) { return payload{}, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestBackendFailureFallsThrough(t *testing.T) {
	backend := newMemBackend()
	backend.fail = true
	c := New[payload](backend, time.Minute, nil)

	got, hit, err := c.GetOrCompute(context.Background(), Key{Query: "x", Limit: 1}, func() (payload, error) {
		return payload{Hits: []string{"D9"}}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"D9"}, got.Hits)
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	c := New[payload](backend, time.Minute, nil)
	c.Set(context.Background(), Key{Version: 1, Query: "a", Limit: 1}, payload{})
	c.Set(context.Background(), Key{Version: 2, Query: "b", Limit: 1}, payload{})
	backend.data["unrelated"] = "keep"

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Equal(t, map[string]string{"unrelated": "keep"}, backend.data)
}

func TestConcurrentCallersShareComputation(t *testing.T) {
	c := New[payload](newMemBackend(), time.Minute, nil)
	key := Key{Version: 1, Query: "storm", Limit: 3}
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), key, func() (payload, error) {
				calls.Add(1)
				<-release
				return payload{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}
