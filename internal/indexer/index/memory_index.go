package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/tokenizer"
)

// MemoryIndex accumulates the postings of an uncommitted write batch.
type MemoryIndex struct {
	mu    sync.RWMutex
	index map[string]map[uint32]*Posting
	size  int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]map[uint32]*Posting),
	}
}

// AddDocument folds the analysed tokens of document doc into the batch.
// Repeated occurrences of a term increment its frequency on the single
// posting for (term, doc).
func (m *MemoryIndex) AddDocument(doc uint32, tokens []tokenizer.Token) {
	termData := make(map[string]*Posting)

	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				Doc:       doc,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for term, posting := range termData {
		if _, exists := m.index[term]; !exists {
			m.index[term] = make(map[uint32]*Posting)
		}
		m.index[term][doc] = posting
		m.size += int64(len(term) + len(posting.Positions)*8 + 32)
	}
}

// Snapshot returns every term of the batch, sorted by term, with postings
// sorted by document number.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		postings := make(PostingList, 0, len(docs))
		for _, posting := range docs {
			postings = append(postings, *posting)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].Doc < postings[j].Doc
		})
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Size is a rough estimate of the batch's memory footprint in bytes.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]map[uint32]*Posting)
	m.size = 0
}
