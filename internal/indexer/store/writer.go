package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
)

// Writer buffers documents on top of the snapshot that was current when the
// session opened. Nothing it writes is visible to readers until Commit.
type Writer struct {
	mu      sync.Mutex
	store   *Store
	base    *Snapshot
	lock    *flock.Flock
	batch   *index.MemoryIndex
	docs    []index.Document
	pending map[string]struct{}
	closed  bool
}

func newWriter(s *Store, base *Snapshot, lock *flock.Flock) *Writer {
	return &Writer{
		store:   s,
		base:    base,
		lock:    lock,
		batch:   index.NewMemoryIndex(),
		pending: make(map[string]struct{}),
	}
}

// WriteDocument adds doc with its analysed tokens to the batch. A rejected
// document leaves the batch untouched.
func (w *Writer) WriteDocument(doc index.Document, tokens []tokenizer.Token) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return apperrors.ErrWriterClosed
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: empty document id", apperrors.ErrInvalidInput)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrEmptyDocument, doc.ID)
	}
	if _, ok := w.base.Lookup(doc.ID); ok {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateDocID, doc.ID)
	}
	if _, ok := w.pending[doc.ID]; ok {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateDocID, doc.ID)
	}

	num := uint32(w.base.DocCount() + len(w.docs))
	w.batch.AddDocument(num, tokens)
	w.docs = append(w.docs, doc)
	w.pending[doc.ID] = struct{}{}
	return nil
}

// Pending is the number of documents buffered in this session.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.docs)
}

// BatchBytes estimates the memory held by the buffered postings.
func (w *Writer) BatchBytes() int64 {
	return w.batch.Size()
}

// Commit persists base plus batch as the next snapshot version, publishes
// it, and ends the session. On failure the previous snapshot stays current.
func (w *Writer) Commit() (*Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, apperrors.ErrWriterClosed
	}
	defer w.release()

	entries := mergeEntries(w.base.entries(), w.batch.Snapshot())
	docs := make([]index.Document, 0, w.base.DocCount()+len(w.docs))
	docs = append(docs, w.base.docs...)
	docs = append(docs, w.docs...)
	version := w.base.Version() + 1

	createdAt := time.Now().UTC()
	name, err := segment.NewWriter(w.store.dir).Write(version, createdAt, entries, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: persisting snapshot %d: %v", apperrors.ErrStorageUnavailable, version, err)
	}
	snap := newSnapshot(version, createdAt, entries, docs)
	w.store.publish(snap)
	w.store.logger.Info("index committed",
		"version", version,
		"segment", name,
		"docs_added", len(w.docs),
		"docs_total", len(docs),
		"terms", len(entries),
	)
	return snap, nil
}

// Abort discards the batch and ends the session. Safe to call after Commit.
func (w *Writer) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.release()
}

func (w *Writer) release() {
	w.closed = true
	w.batch.Reset()
	if err := w.lock.Unlock(); err != nil {
		w.store.logger.Warn("releasing write lock", "error", err)
	}
	w.store.writing.Store(false)
}

// mergeEntries combines two term-sorted entry lists. Batch document numbers
// are all greater than base numbers, so concatenation keeps postings
// ordered. Base slices are copied, never appended to in place.
func mergeEntries(base, batch []index.TermEntry) []index.TermEntry {
	out := make([]index.TermEntry, 0, len(base)+len(batch))
	i, j := 0, 0
	for i < len(base) && j < len(batch) {
		switch {
		case base[i].Term < batch[j].Term:
			out = append(out, base[i])
			i++
		case base[i].Term > batch[j].Term:
			out = append(out, batch[j])
			j++
		default:
			pl := make(index.PostingList, 0, len(base[i].Postings)+len(batch[j].Postings))
			pl = append(pl, base[i].Postings...)
			pl = append(pl, batch[j].Postings...)
			out = append(out, index.TermEntry{Term: base[i].Term, Postings: pl})
			i++
			j++
		}
	}
	out = append(out, base[i:]...)
	out = append(out, batch[j:]...)
	return out
}
