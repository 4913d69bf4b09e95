// Package searcher answers queries against the committed index: it parses
// the query, ranks the matching documents, and renders snippets from the
// raw corpus. Each query's failure is confined to that query.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/snippet"
	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/tracing"
)

// SnapshotSource yields the snapshot a query runs against.
type SnapshotSource interface {
	Snapshot() (*store.Snapshot, error)
}

type Hit struct {
	Rank     int               `json:"rank"`
	Score    float64           `json:"score"`
	DocID    string            `json:"doc_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Snippet  string            `json:"snippet"`
}

type Response struct {
	Query           string        `json:"query"`
	Canonical       string        `json:"canonical"`
	TotalCandidates int           `json:"total_candidates"`
	Hits            []Hit         `json:"hits"`
	Dropped         []string      `json:"dropped,omitempty"`
	Version         uint64        `json:"index_version"`
	Elapsed         time.Duration `json:"elapsed_ns"`
	CacheHit        bool          `json:"cache_hit"`
}

type IndexStats struct {
	Version   uint64    `json:"version"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	snapshots SnapshotSource
	texts     corpus.TextSource
	analyzer  *tokenizer.Analyzer
	executor  *executor.Executor
	snippets  snippet.Options
	cache     *cache.QueryCache[Response]
	metrics   *metrics.Metrics
	tracker   analytics.Tracker
	logger    *slog.Logger
}

type Option func(*Service)

func WithAnalyzer(a *tokenizer.Analyzer) Option {
	return func(s *Service) { s.analyzer = a }
}

func WithWeighting(w ranker.Weighting) Option {
	return func(s *Service) { s.executor = executor.New(w) }
}

func WithSnippetOptions(o snippet.Options) Option {
	return func(s *Service) { s.snippets = o }
}

func WithCache(c *cache.QueryCache[Response]) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracker reports every answered query to t.
func WithTracker(t analytics.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func New(snapshots SnapshotSource, texts corpus.TextSource, opts ...Option) *Service {
	s := &Service{
		snapshots: snapshots,
		texts:     texts,
		analyzer:  tokenizer.Default,
		executor:  executor.New(ranker.TFIDF{}),
		snippets:  snippet.DefaultOptions(),
		logger:    slog.Default().With("component", "search-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunQuery returns up to k ranked hits for raw.
func (s *Service) RunQuery(ctx context.Context, raw string, k int) (resp *Response, err error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "search-service")
	cacheStatus := "disabled"
	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	defer func() {
		if r := recover(); r != nil {
			log.Error("query panicked", "query", raw, "panic", r)
			resp, err = nil, fmt.Errorf("%w: query failed", apperrors.ErrInternal)
		}
		span.SetAttr("cache", cacheStatus)
		span.End()
		span.Log(ctx)
		s.observe(ctx, resp, err, cacheStatus, time.Since(start))
	}()

	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", apperrors.ErrInvalidLimit, k)
	}
	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	q, err := parser.Parse(raw, s.analyzer)
	parseSpan.End()
	if err != nil {
		return nil, err
	}
	parseSpan.SetAttr("canonical", q.String())
	snap, err := s.snapshots.Snapshot()
	if err != nil {
		return nil, err
	}

	var out Response
	if s.cache != nil && !q.Empty() {
		// The computation is shared with concurrent callers of the same key,
		// so one caller going away must not cancel it for the others.
		compute := func() (Response, error) {
			return s.execute(context.WithoutCancel(ctx), snap, q, k)
		}
		var hit bool
		// Surface words shape the snippets, so they are part of the key.
		key := cache.Key{
			Version: snap.Version(),
			Query:   q.String() + "|" + strings.Join(q.Surface, " "),
			Limit:   k,
		}
		out, hit, err = s.cache.GetOrCompute(ctx, key, compute)
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
		out.CacheHit = hit
	} else {
		out, err = s.execute(ctx, snap, q, k)
	}
	if err != nil {
		return nil, err
	}
	out.Query = raw
	out.Dropped = q.Dropped
	out.Elapsed = time.Since(start)

	log.Info("search completed",
		"query", raw,
		"canonical", out.Canonical,
		"total_candidates", out.TotalCandidates,
		"returned", len(out.Hits),
		"version", out.Version,
		"cache", cacheStatus,
		"latency_ms", out.Elapsed.Milliseconds(),
	)
	return &out, nil
}

func (s *Service) execute(ctx context.Context, snap *store.Snapshot, q *parser.Query, k int) (Response, error) {
	_, rankSpan := tracing.StartChildSpan(ctx, "rank")
	result, err := s.executor.Execute(ctx, snap, q, k)
	rankSpan.End()
	if err != nil {
		return Response{}, err
	}
	rankSpan.SetAttr("total_candidates", result.TotalCandidates)

	_, snippetSpan := tracing.StartChildSpan(ctx, "snippets")
	defer snippetSpan.End()
	out := Response{
		Canonical:       q.String(),
		TotalCandidates: result.TotalCandidates,
		Hits:            make([]Hit, 0, len(result.Hits)),
		Version:         snap.Version(),
	}
	for i, h := range result.Hits {
		doc, ok := snap.Document(h.Doc)
		if !ok {
			return Response{}, fmt.Errorf("%w: hit references unknown document %d", apperrors.ErrInternal, h.Doc)
		}
		out.Hits = append(out.Hits, Hit{
			Rank:     i + 1,
			Score:    h.Score,
			DocID:    doc.ID,
			Metadata: doc.Fields,
			Snippet:  s.snippet(ctx, doc.Locator, q.Surface),
		})
	}
	return out, nil
}

// snippet degrades to an empty excerpt when the raw file is gone; the hit
// itself is still valid.
func (s *Service) snippet(ctx context.Context, locator string, terms []string) string {
	if s.texts == nil {
		return ""
	}
	text, err := s.texts.ReadText(locator)
	if err != nil {
		logger.FromContext(ctx).Warn("reading document for snippet", "locator", locator, "error", err)
		return ""
	}
	return snippet.Generate(text, terms, s.snippets)
}

// Stats describes the snapshot queries currently run against.
func (s *Service) Stats() (IndexStats, error) {
	snap, err := s.snapshots.Snapshot()
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{
		Version:   snap.Version(),
		Documents: snap.DocCount(),
		Terms:     snap.TermCount(),
		CreatedAt: snap.CreatedAt(),
	}, nil
}

// InvalidateCache drops cached responses, if caching is enabled.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func (s *Service) observe(ctx context.Context, resp *Response, err error, cacheStatus string, elapsed time.Duration) {
	if s.tracker != nil && resp != nil {
		s.tracker.Track(analytics.QueryEvent{
			Query:           resp.Query,
			Canonical:       resp.Canonical,
			Dropped:         resp.Dropped,
			TotalCandidates: resp.TotalCandidates,
			Returned:        len(resp.Hits),
			LatencyMs:       elapsed.Milliseconds(),
			CacheHit:        resp.CacheHit,
			IndexVersion:    resp.Version,
			Timestamp:       time.Now().UTC(),
			RequestID:       logger.RequestID(ctx),
		})
	}
	if s.metrics == nil {
		return
	}
	resultType := "hit"
	switch {
	case errors.Is(err, apperrors.ErrInvalidLimit), errors.Is(err, apperrors.ErrQuerySyntax):
		resultType = "invalid"
	case errors.Is(err, apperrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		resultType = "timeout"
	case err != nil:
		resultType = "error"
	case len(resp.Hits) == 0:
		resultType = "zero_result"
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	if resp != nil {
		s.metrics.SearchResultsCount.Observe(float64(len(resp.Hits)))
	}
}
