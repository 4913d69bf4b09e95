package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
)

type memIndex struct {
	n        int
	postings map[string]index.PostingList
}

func (m *memIndex) DocCount() int                          { return m.n }
func (m *memIndex) Postings(term string) index.PostingList { return m.postings[term] }

func build(texts ...string) *memIndex {
	mem := index.NewMemoryIndex()
	for i, text := range texts {
		mem.AddDocument(uint32(i), tokenizer.Tokenize(text))
	}
	idx := &memIndex{n: len(texts), postings: map[string]index.PostingList{}}
	for _, e := range mem.Snapshot() {
		idx.postings[e.Term] = e.Postings
	}
	return idx
}

func run(t *testing.T, idx Index, raw string, k int) *Result {
	t.Helper()
	q, err := parser.Parse(raw, tokenizer.Default)
	require.NoError(t, err)
	res, err := New(ranker.TFIDF{}).Execute(context.Background(), idx, q, k)
	require.NoError(t, err)
	return res
}

func docs(res *Result) []uint32 {
	out := make([]uint32, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.Doc
	}
	return out
}

func TestInvalidLimit(t *testing.T) {
	q, err := parser.Parse("fox", tokenizer.Default)
	require.NoError(t, err)
	for _, k := range []int{0, -1} {
		_, err := New(nil).Execute(context.Background(), build("fox"), q, k)
		assert.ErrorIs(t, err, apperrors.ErrInvalidLimit)
	}
}

func TestConjunction(t *testing.T) {
	idx := build("alpha beta", "alpha gamma", "beta gamma alpha", "delta")

	assert.Equal(t, []uint32{0, 2}, sortedDocs(run(t, idx, "alpha beta", 10)))
	assert.Empty(t, run(t, idx, "alpha epsilon", 10).Hits)
	assert.Zero(t, run(t, idx, "alpha epsilon", 10).TotalCandidates)
}

func sortedDocs(res *Result) []uint32 {
	d := docs(res)
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j] < d[j-1]; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
	return d
}

func TestAbsentTermYieldsNoHits(t *testing.T) {
	idx := build("apple banana")
	res := run(t, idx, "apple cherry", 5)
	assert.Empty(t, res.Hits)
}

func TestPhraseOrderSignificant(t *testing.T) {
	idx := build("new york city", "york new city", "other words")

	res := run(t, idx, `"new york"`, 10)
	assert.Equal(t, []uint32{0}, docs(res))

	res = run(t, idx, `"york new"`, 10)
	assert.Equal(t, []uint32{1}, docs(res))
}

func TestPhraseAcrossStopWords(t *testing.T) {
	idx := build("the state of the union address", "union of states")
	res := run(t, idx, `"state of the union"`, 10)
	assert.Equal(t, []uint32{0}, docs(res))
}

func TestPhraseFrequencyCountsOccurrences(t *testing.T) {
	idx := build("new york new york", "new york", "boston")
	res := run(t, idx, `"new york"`, 10)
	require.Len(t, res.Hits, 2)
	// df 2 of 3; doc 0 has tf 2, doc 1 tf 1.
	assert.Equal(t, uint32(0), res.Hits[0].Doc)
	idf := ranker.IDF(2, 3)
	assert.InDelta(t, ranker.SmoothedTF(2)*idf, res.Hits[0].Score, 1e-12)
	assert.InDelta(t, idf, res.Hits[1].Score, 1e-12)
	assert.Equal(t, 2, res.NodeStats[0].DocFreq)
}

func TestSingleDocumentScoresZero(t *testing.T) {
	idx := build("hurricane relief effort")
	res := run(t, idx, `hurricane "relief effort"`, 10)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 0.0, res.Hits[0].Score)
}

func TestTopKAndTieBreak(t *testing.T) {
	// Every document scores the same; order must follow postings order.
	idx := build("storm", "storm", "storm", "storm", "calm")
	res := run(t, idx, "storm", 3)
	assert.Equal(t, []uint32{0, 1, 2}, docs(res))
	assert.Equal(t, 4, res.TotalCandidates)
}

func TestRankingByScore(t *testing.T) {
	idx := build(
		"quake",
		"quake quake quake tsunami",
		"tsunami warning",
		"quake tsunami",
	)
	res := run(t, idx, "quake tsunami", 10)
	assert.Equal(t, []uint32{1, 3}, docs(res))
	assert.Greater(t, res.Hits[0].Score, res.Hits[1].Score)
}

func TestDeterministic(t *testing.T) {
	idx := build("a b c fox", "fox fox", "the fox jumps", "lazy fox dog", "fox")
	first := run(t, idx, "fox", 4)
	for range 10 {
		assert.Equal(t, first, run(t, idx, "fox", 4))
	}
}

func TestEmptyQuery(t *testing.T) {
	res := run(t, build("anything"), "the of", 5)
	assert.Empty(t, res.Hits)
	assert.NotNil(t, res.Hits)
}

func TestCustomWeighting(t *testing.T) {
	idx := build("fox fox", "fox")
	q, err := parser.Parse("fox", tokenizer.Default)
	require.NoError(t, err)
	tfOnly := ranker.WeightingFunc(func(tf, _, _ int) float64 { return float64(tf) })

	res, err := New(tfOnly).Execute(context.Background(), idx, q, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Hits[0].Score)
	assert.Equal(t, 1.0, res.Hits[1].Score)
}
