// Package integration wires the real indexing and search components together
// in-process: corpus files on disk, the segment store, the HTTP handler and
// middleware chain. Tests that need PostgreSQL or Redis skip when the
// service is not reachable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/analytics/history"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/resilience"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var corpusDocs = []struct {
	file, docno, doctype, text string
}{
	{"19981001/APW0001.txt", "APW19981001.0001", "NEWS STORY", "Hurricane Georges hit the Florida Keys on Friday."},
	{"19981001/APW0002.txt", "APW19981001.0002", "NEWS STORY", "Relief agencies in New York sent supplies to the islands after the hurricane."},
	{"19981002/NYT0001.txt", "NYT19981002.0001", "MISCELLANEOUS", "The York county council met in New Jersey to discuss the budget."},
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range corpusDocs {
		path := filepath.Join(root, filepath.FromSlash(d.file))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		content := fmt.Sprintf("<DOC>\n<DOCNO> %s </DOCNO>\n<DOCTYPE> %s </DOCTYPE>\n<TEXT>\n%s\n</TEXT>\n</DOC>\n", d.docno, d.doctype, d.text)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

type stack struct {
	server     *httptest.Server
	aggregator *analytics.Aggregator
}

// newStack builds the index and serves it through the same handler and
// middleware chain as cmd/searcher.
func newStack(t *testing.T, opts ...searcher.Option) *stack {
	t.Helper()
	root := writeCorpus(t)
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	_, err = indexer.NewBuilder(st, indexer.WithWorkers(2)).BuildIndex(context.Background(), root)
	require.NoError(t, err)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	agg := analytics.NewAggregator()
	opts = append(opts, searcher.WithMetrics(m), searcher.WithTracker(agg))
	svc := searcher.New(st, corpus.NewReader(root), opts...)

	checker := health.NewChecker()
	checker.Register("index", health.SnapshotCheck(st.Snapshot))

	mux := http.NewServeMux()
	handler.New(svc, 10, 50).Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(5 * time.Second)(chain)
	chain = middleware.RequestID(chain)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return &stack{server: srv, aggregator: agg}
}

func (s *stack) search(t *testing.T, q string, limit int) (int, searcher.Response) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", s.server.URL, url.QueryEscape(q), limit))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out searcher.Response
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSearchOverHTTP(t *testing.T) {
	s := newStack(t)

	status, resp := s.search(t, `"new york" hurricane`, 10)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "APW19981001.0002", resp.Hits[0].DocID)
	assert.Equal(t, "NEWS STORY", resp.Hits[0].Metadata[corpus.FieldDocType])
	assert.Contains(t, resp.Hits[0].Snippet, "【New】 【York】")

	status, resp = s.search(t, "hurricane", 10)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, resp.TotalCandidates)

	status, _ = s.search(t, `"new york`, 10)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, int64(2), s.aggregator.Stats().TotalSearches)
}

func TestPhraseOrderOverHTTP(t *testing.T) {
	s := newStack(t)

	// Doc 3 has both words but not adjacent and in order.
	_, resp := s.search(t, `"york new"`, 10)
	assert.Empty(t, resp.Hits)
	_, resp = s.search(t, "york new", 10)
	assert.Len(t, resp.Hits, 2)
}

func TestReadyAndRequestID(t *testing.T) {
	s := newStack(t)

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/health/ready", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "itest-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "itest-1", resp.Header.Get("X-Request-ID"))
}

func testPostgres(t *testing.T, ctx context.Context) *postgres.Client {
	t.Helper()
	cfg := config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "tdtsearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "tdtsearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}
	db, err := postgres.New(ctx, cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCatalogAgainstPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db := testPostgres(t, ctx)

	cat := catalog.New(db)
	require.NoError(t, cat.EnsureSchema(ctx))
	before, err := cat.Count(ctx)
	require.NoError(t, err)

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	report, err := indexer.NewBuilder(st, indexer.WithRecorder(cat)).BuildIndex(ctx, writeCorpus(t))
	require.NoError(t, err)
	require.Equal(t, len(corpusDocs), report.Indexed)

	after, err := cat.Count(ctx)
	require.NoError(t, err)
	// Upserts keyed by doc id: a rerun against the same database adds nothing.
	assert.GreaterOrEqual(t, after, before)
	assert.GreaterOrEqual(t, after, len(corpusDocs))
}

func TestStatsHistoryAgainstPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db := testPostgres(t, ctx)

	hist := history.NewStore(db)
	require.NoError(t, hist.EnsureSchema(ctx))

	agg := analytics.NewAggregator()
	s := newStack(t, searcher.WithTracker(agg))
	s.search(t, "hurricane", 10)
	s.search(t, "hurricane", 10)

	require.NoError(t, hist.Save(ctx, agg.Stats()))
	last, err := hist.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(2), last.Stats.TotalSearches)

	listed, err := hist.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, last.Stats, listed[0].Stats)
}

func TestQueryCacheAgainstRedis(t *testing.T) {
	client, err := pkgredis.NewClient(config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		PoolSize: 2,
	})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	backend := cache.Guard(client, time.Second, resilience.CircuitBreakerConfig{})
	qc := cache.New[searcher.Response](backend, time.Minute, nil)
	require.NoError(t, qc.Invalidate(context.Background()))

	s := newStack(t, searcher.WithCache(qc))
	_, first := s.search(t, "hurricane", 10)
	_, second := s.search(t, "hurricane", 10)
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Hits, second.Hits)
}

func TestRedisFlushByPatternPages(t *testing.T) {
	client, err := pkgredis.NewClient(config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		PoolSize: 2,
	})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	prefix := fmt.Sprintf("tdtsearch-flush-test-%d:", time.Now().UnixNano())
	// More keys than one SCAN page.
	for i := range 600 {
		require.NoError(t, client.Set(ctx, fmt.Sprintf("%s%d", prefix, i), "v", time.Minute))
	}

	deleted, err := client.FlushByPattern(ctx, prefix+"*")
	require.NoError(t, err)
	assert.Equal(t, int64(600), deleted)
	_, err = client.Get(ctx, prefix+"0")
	assert.True(t, pkgredis.IsNilError(err))
}
