// Package indexer builds the inverted index from a corpus directory. A
// Builder enumerates source files, extracts and analyses them with bounded
// parallelism, writes them through the store's single writer in
// enumeration order, and commits once at the end.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/metrics"
)

// Skip reasons, also used as metric labels.
const (
	SkipReadError = "read_error"
	SkipNoMarkers = "no_markers"
	SkipEmpty     = "empty"
	SkipDuplicate = "duplicate"
)

// Notifier announces committed snapshots.
type Notifier interface {
	PublishCommit(ctx context.Context, ev kafka.IndexCommitted) error
}

// Recorder mirrors committed documents somewhere outside the index.
type Recorder interface {
	Record(ctx context.Context, version uint64, docs []index.Document) error
}

// Report summarises one BuildIndex run.
type Report struct {
	Indexed    int
	Skipped    int
	Duplicates int
	Elapsed    time.Duration
	// Version is the committed snapshot version, 0 when nothing was committed.
	Version uint64
}

type Builder struct {
	store         *store.Store
	analyzer      *tokenizer.Analyzer
	enumerator    corpus.Enumerator
	extractor     corpus.Extractor
	workers       int
	progressEvery int
	metrics       *metrics.Metrics
	notifier      Notifier
	recorder      Recorder
	logger        *slog.Logger
}

type Option func(*Builder)

func WithAnalyzer(a *tokenizer.Analyzer) Option {
	return func(b *Builder) { b.analyzer = a }
}

func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithProgressEvery(n int) Option {
	return func(b *Builder) { b.progressEvery = n }
}

func WithFileSuffix(suffix string) Option {
	return func(b *Builder) { b.enumerator.Suffix = suffix }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(b *Builder) { b.notifier = n }
}

func WithRecorder(r Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

func NewBuilder(st *store.Store, opts ...Option) *Builder {
	b := &Builder{
		store:         st,
		analyzer:      tokenizer.Default,
		enumerator:    corpus.Enumerator{Suffix: ".txt"},
		workers:       4,
		progressEvery: 1000,
		logger:        slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// extracted is the per-file outcome of the parallel phase.
type extracted struct {
	locator string
	doc     index.Document
	tokens  []tokenizer.Token
	skip    string
	err     error
}

// BuildIndex indexes every source file under root. Unreadable or
// unparseable files are skipped and counted; only storage failures and
// cancellation abort the run, in which case nothing is committed.
func (b *Builder) BuildIndex(ctx context.Context, root string) (Report, error) {
	start := time.Now()
	var report Report

	var locators []string
	err := b.enumerator.Walk(ctx, root, func(loc string) error {
		locators = append(locators, loc)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("enumerating corpus: %w", err)
	}
	b.logger.Info("indexing started",
		"corpus_root", root,
		"files", len(locators),
		"workers", b.workers,
	)

	w, err := b.store.Writer()
	if err != nil {
		return report, fmt.Errorf("opening index writer: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			w.Abort()
		}
	}()

	reader := corpus.NewReader(root)
	var added []index.Document
	chunk := b.workers * 64
	for lo := 0; lo < len(locators); lo += chunk {
		hi := min(lo+chunk, len(locators))
		results, err := b.extractChunk(ctx, reader, locators[lo:hi])
		if err != nil {
			return report, err
		}
		for _, r := range results {
			if r.skip != "" {
				b.skip(&report, r)
				continue
			}
			err := w.WriteDocument(r.doc, r.tokens)
			switch {
			case err == nil:
				added = append(added, r.doc)
				report.Indexed++
				if b.metrics != nil {
					b.metrics.DocsIndexedTotal.Inc()
				}
				if b.progressEvery > 0 && report.Indexed%b.progressEvery == 0 {
					b.logger.Info("indexing progress",
						"indexed", report.Indexed,
						"skipped", report.Skipped+report.Duplicates,
						"pending", w.Pending(),
						"batch_bytes", w.BatchBytes(),
						"elapsed", time.Since(start).Round(time.Millisecond),
					)
				}
			case errors.Is(err, apperrors.ErrDuplicateDocID):
				r.skip, r.err = SkipDuplicate, err
				b.skip(&report, r)
			case errors.Is(err, apperrors.ErrEmptyDocument), errors.Is(err, apperrors.ErrInvalidInput):
				r.skip, r.err = SkipEmpty, err
				b.skip(&report, r)
			default:
				return report, fmt.Errorf("writing %s: %w", r.locator, err)
			}
		}
	}

	if report.Indexed == 0 {
		report.Elapsed = time.Since(start)
		b.logger.Warn("no indexable documents found, nothing committed",
			"corpus_root", root,
			"skipped", report.Skipped,
			"duplicates", report.Duplicates,
		)
		return report, nil
	}

	snap, err := w.Commit()
	committed = true
	if err != nil {
		b.countCommit("error")
		return report, fmt.Errorf("committing index: %w", err)
	}
	b.countCommit("success")
	report.Version = snap.Version()
	report.Elapsed = time.Since(start)
	if b.metrics != nil {
		b.metrics.IndexDocCount.Set(float64(snap.DocCount()))
		b.metrics.IndexVersion.Set(float64(snap.Version()))
	}

	b.afterCommit(ctx, snap, added)

	b.logger.Info("indexing complete",
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"duplicates", report.Duplicates,
		"version", report.Version,
		"elapsed", report.Elapsed.Round(time.Millisecond),
	)
	return report, nil
}

// extractChunk reads, extracts, and analyses locators in parallel. Results
// keep the input order.
func (b *Builder) extractChunk(ctx context.Context, reader *corpus.Reader, locators []string) ([]extracted, error) {
	results := make([]extracted, len(locators))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, loc := range locators {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.extractOne(reader, loc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extracting documents: %w", err)
	}
	return results, nil
}

func (b *Builder) extractOne(reader *corpus.Reader, loc string) extracted {
	res := extracted{locator: loc}
	raw, err := reader.ReadRaw(loc)
	if err != nil {
		res.skip, res.err = SkipReadError, err
		return res
	}
	rec, ok := b.extractor.Extract(raw)
	if !ok {
		res.skip = SkipNoMarkers
		return res
	}
	res.tokens = b.analyzer.Tokens(rec.Text)
	if len(res.tokens) == 0 {
		res.skip = SkipEmpty
		return res
	}
	res.doc = index.Document{
		ID:      rec.DocID,
		Locator: loc,
		Fields:  rec.Fields,
	}
	return res
}

func (b *Builder) skip(report *Report, r extracted) {
	if r.skip == SkipDuplicate {
		report.Duplicates++
	} else {
		report.Skipped++
	}
	if b.metrics != nil {
		b.metrics.DocsSkippedTotal.WithLabelValues(r.skip).Inc()
	}
	attrs := []any{"locator", r.locator, "reason", r.skip}
	if r.err != nil {
		attrs = append(attrs, "error", r.err)
	}
	b.logger.Warn("skipping document", attrs...)
}

func (b *Builder) countCommit(status string) {
	if b.metrics != nil {
		b.metrics.IndexCommitsTotal.WithLabelValues(status).Inc()
	}
}

// afterCommit updates the catalog and announces the snapshot. Neither can
// fail the build; the index is already durable.
func (b *Builder) afterCommit(ctx context.Context, snap *store.Snapshot, added []index.Document) {
	if b.recorder != nil {
		if err := b.recorder.Record(ctx, snap.Version(), added); err != nil {
			b.logger.Error("recording documents in catalog", "version", snap.Version(), "error", err)
		}
	}
	if b.notifier != nil {
		ev := kafka.IndexCommitted{
			Version:     snap.Version(),
			DocCount:    snap.DocCount(),
			DocsAdded:   len(added),
			IndexDir:    b.store.Dir(),
			CommittedAt: snap.CreatedAt().UTC(),
		}
		if err := b.notifier.PublishCommit(ctx, ev); err != nil {
			b.logger.Error("publishing commit event", "version", snap.Version(), "error", err)
		}
	}
}
