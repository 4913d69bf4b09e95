package store

import (
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
)

// Stats are the global counters a scorer needs: N and per-term df.
type Stats struct {
	N       int
	DocFreq map[string]int
}

// Snapshot is one committed, immutable version of the index. All methods are
// safe for concurrent use without synchronisation. Returned slices are
// shared and must not be modified.
type Snapshot struct {
	version   uint64
	createdAt time.Time
	docs      []index.Document
	byID      map[string]uint32
	postings  map[string]index.PostingList
}

func newSnapshot(version uint64, createdAt time.Time, entries []index.TermEntry, docs []index.Document) *Snapshot {
	s := &Snapshot{
		version:   version,
		createdAt: createdAt,
		docs:      docs,
		byID:      make(map[string]uint32, len(docs)),
		postings:  make(map[string]index.PostingList, len(entries)),
	}
	for i, d := range docs {
		s.byID[d.ID] = uint32(i)
	}
	for _, e := range entries {
		s.postings[e.Term] = e.Postings
	}
	return s
}

func (s *Snapshot) Version() uint64 {
	return s.version
}

func (s *Snapshot) CreatedAt() time.Time {
	return s.createdAt
}

// DocCount is N, the number of documents visible in this snapshot.
func (s *Snapshot) DocCount() int {
	return len(s.docs)
}

// TermCount is the size of the vocabulary.
func (s *Snapshot) TermCount() int {
	return len(s.postings)
}

// DocFreq is the number of distinct documents containing term.
func (s *Snapshot) DocFreq(term string) int {
	return len(s.postings[term])
}

// Stats copies out N and the full df table.
func (s *Snapshot) Stats() Stats {
	df := make(map[string]int, len(s.postings))
	for term, pl := range s.postings {
		df[term] = len(pl)
	}
	return Stats{N: len(s.docs), DocFreq: df}
}

// Postings returns the postings of an analysed term ordered by document
// number, which is also write order.
func (s *Snapshot) Postings(term string) index.PostingList {
	return s.postings[term]
}

// Document returns the stored row for an internal document number.
func (s *Snapshot) Document(num uint32) (index.Document, bool) {
	if int(num) >= len(s.docs) {
		return index.Document{}, false
	}
	return s.docs[num], true
}

// Lookup maps an external document id to its internal number.
func (s *Snapshot) Lookup(id string) (uint32, bool) {
	num, ok := s.byID[id]
	return num, ok
}

// entries returns every term in lexical order, for re-persisting.
func (s *Snapshot) entries() []index.TermEntry {
	out := make([]index.TermEntry, 0, len(s.postings))
	for term, pl := range s.postings {
		out = append(out, index.TermEntry{Term: term, Postings: pl})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Term < out[j].Term
	})
	return out
}

var emptySnapshot = newSnapshot(0, time.Time{}, nil, nil)
