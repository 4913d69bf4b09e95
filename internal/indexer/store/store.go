// Package store is the persisted inverted index. It publishes immutable
// Snapshots to readers and admits a single Writer session at a time, both
// inside the process and across processes sharing the same directory.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
)

const lockFileName = "write.lock"

type Store struct {
	dir     string
	current atomic.Pointer[Snapshot]
	writing atomic.Bool
	logger  *slog.Logger
}

// Open creates dir if needed and loads the newest committed segment in it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating index directory %s: %v",
			apperrors.ErrStorageUnavailable, dir, err)
	}
	s := &Store{
		dir:    dir,
		logger: slog.Default().With("component", "index-store"),
	}
	snap, err := s.loadNewest()
	if err != nil {
		return nil, err
	}
	if snap != nil {
		s.current.Store(snap)
		s.logger.Info("index snapshot loaded",
			"version", snap.Version(),
			"docs", snap.DocCount(),
			"terms", snap.TermCount(),
		)
	}
	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Snapshot returns the most recently committed snapshot.
func (s *Store) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, apperrors.ErrNotCommitted
	}
	return snap, nil
}

// Reload publishes a newer snapshot committed by another process, if any.
func (s *Store) Reload() (*Snapshot, error) {
	snap, err := s.loadNewest()
	if err != nil {
		return nil, err
	}
	if snap != nil {
		cur := s.current.Load()
		if cur == nil || snap.Version() > cur.Version() {
			s.current.Store(snap)
			s.logger.Info("index snapshot reloaded",
				"version", snap.Version(),
				"docs", snap.DocCount(),
			)
		}
	}
	return s.Snapshot()
}

// Writer opens the single write session. A second session, in this
// process or another, fails with ErrConcurrentWrite until the first
// commits or aborts.
func (s *Store) Writer() (*Writer, error) {
	if !s.writing.CompareAndSwap(false, true) {
		return nil, apperrors.ErrConcurrentWrite
	}
	lock := flock.New(filepath.Join(s.dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		s.writing.Store(false)
		return nil, fmt.Errorf("%w: acquiring write lock: %v", apperrors.ErrStorageUnavailable, err)
	}
	if !locked {
		s.writing.Store(false)
		return nil, apperrors.ErrConcurrentWrite
	}
	// Another process may have committed since Open.
	if _, err := s.Reload(); err != nil && !errors.Is(err, apperrors.ErrNotCommitted) {
		lock.Unlock()
		s.writing.Store(false)
		return nil, err
	}
	base := s.current.Load()
	if base == nil {
		base = emptySnapshot
	}
	return newWriter(s, base, lock), nil
}

func (s *Store) publish(snap *Snapshot) {
	s.current.Store(snap)
	s.removeSegmentsBefore(snap.Version())
}

func (s *Store) segmentFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading index directory: %v", apperrors.ErrStorageUnavailable, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "seg_") && strings.HasSuffix(e.Name(), segment.FileSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// loadNewest returns the newest readable segment as a snapshot, or nil when
// nothing has been committed. Corrupt segments are skipped.
func (s *Store) loadNewest() (*Snapshot, error) {
	names, err := s.segmentFiles()
	if err != nil {
		return nil, err
	}
	for i := len(names) - 1; i >= 0; i-- {
		snap, err := s.loadSegment(filepath.Join(s.dir, names[i]))
		if err != nil {
			s.logger.Error("failed to load segment, skipping",
				"segment", names[i],
				"error", err,
			)
			continue
		}
		return snap, nil
	}
	return nil, nil
}

func (s *Store) loadSegment(path string) (*Snapshot, error) {
	r, err := segment.OpenReader(path)
	if err != nil {
		return nil, err
	}
	entries, err := r.Entries()
	if err != nil {
		return nil, err
	}
	s.logger.Debug("segment loaded",
		"segment", r.Path(),
		"terms", r.Terms(),
		"docs", r.DocCount(),
		"created_at", r.CreatedAt(),
	)
	return newSnapshot(r.Snapshot(), r.CreatedAt(), entries, r.Documents()), nil
}

func (s *Store) removeSegmentsBefore(version uint64) {
	names, err := s.segmentFiles()
	if err != nil {
		s.logger.Warn("listing segments for cleanup", "error", err)
		return
	}
	keep := segment.Name(version)
	for _, name := range names {
		if name >= keep {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn("removing superseded segment", "segment", name, "error", err)
		}
	}
}
