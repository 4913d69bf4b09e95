// Package executor evaluates parsed queries against an index snapshot:
// it resolves every node to its matching documents, intersects them,
// scores the survivors, and keeps the top k.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
)

// Index is the read surface of a committed snapshot.
type Index interface {
	DocCount() int
	Postings(term string) index.PostingList
}

// ScoredHit is one ranked document, identified by its internal number.
type ScoredHit struct {
	Doc   uint32  `json:"doc"`
	Score float64 `json:"score"`
}

// NodeStat reports how many documents matched one query node.
type NodeStat struct {
	Node    string `json:"node"`
	DocFreq int    `json:"doc_freq"`
}

type Result struct {
	Hits            []ScoredHit `json:"hits"`
	TotalCandidates int         `json:"total_candidates"`
	NodeStats       []NodeStat  `json:"node_stats"`
}

type Executor struct {
	weighting ranker.Weighting
	logger    *slog.Logger
}

func New(w ranker.Weighting) *Executor {
	if w == nil {
		w = ranker.TFIDF{}
	}
	return &Executor{
		weighting: w,
		logger:    slog.Default().With("component", "query-executor"),
	}
}

// match is a node's frequency in one document.
type match struct {
	doc uint32
	tf  int
}

// Execute returns at most k hits, best first. Documents must match every
// node. Equal scores keep the order in which documents were encountered
// while scanning the first node's matches.
func (e *Executor) Execute(ctx context.Context, idx Index, q *parser.Query, k int) (*Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", apperrors.ErrInvalidLimit, k)
	}
	result := &Result{Hits: []ScoredHit{}}
	if q.Empty() {
		return result, nil
	}

	matches := make([][]match, len(q.Nodes))
	for i, node := range q.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches[i] = nodeMatches(idx, node)
		result.NodeStats = append(result.NodeStats, NodeStat{Node: node.String(), DocFreq: len(matches[i])})
	}

	n := idx.DocCount()
	top := merger.NewTopK(k)
	cursors := make([]int, len(matches))
	seq := 0
scan:
	for _, m := range matches[0] {
		tfs := make([]int, len(matches))
		tfs[0] = m.tf
		for i := 1; i < len(matches); i++ {
			list := matches[i]
			c := cursors[i]
			for c < len(list) && list[c].doc < m.doc {
				c++
			}
			cursors[i] = c
			if c == len(list) {
				break scan
			}
			if list[c].doc != m.doc {
				continue scan
			}
			tfs[i] = list[c].tf
		}
		var score float64
		for i, tf := range tfs {
			score += e.weighting.TermScore(tf, len(matches[i]), n)
		}
		top.Offer(merger.Candidate{Doc: m.doc, Score: score, Seq: seq})
		seq++
	}
	result.TotalCandidates = seq

	for _, c := range top.Results() {
		result.Hits = append(result.Hits, ScoredHit{Doc: c.Doc, Score: c.Score})
	}
	e.logger.Debug("query executed",
		"query", q.String(),
		"candidates", result.TotalCandidates,
		"returned", len(result.Hits),
	)
	return result, nil
}

func nodeMatches(idx Index, node parser.Node) []match {
	if node.Kind == parser.NodeTerm {
		postings := idx.Postings(node.Terms[0])
		out := make([]match, len(postings))
		for i, p := range postings {
			out[i] = match{doc: p.Doc, tf: p.Frequency}
		}
		return out
	}
	return phraseMatches(idx, node.Terms)
}

// phraseMatches finds documents where terms occur at consecutive positions.
// tf counts every start position, so overlapping occurrences each count.
func phraseMatches(idx Index, terms []string) []match {
	lists := make([]index.PostingList, len(terms))
	for i, t := range terms {
		lists[i] = idx.Postings(t)
		if len(lists[i]) == 0 {
			return nil
		}
	}
	var out []match
	cursors := make([]int, len(lists))
	positions := make([][]int, len(lists))
outer:
	for _, p := range lists[0] {
		positions[0] = p.Positions
		for i := 1; i < len(lists); i++ {
			c := cursors[i]
			for c < len(lists[i]) && lists[i][c].Doc < p.Doc {
				c++
			}
			cursors[i] = c
			if c == len(lists[i]) {
				break outer
			}
			if lists[i][c].Doc != p.Doc {
				continue outer
			}
			positions[i] = lists[i][c].Positions
		}
		if tf := countPhrase(positions); tf > 0 {
			out = append(out, match{doc: p.Doc, tf: tf})
		}
	}
	return out
}

func countPhrase(positions [][]int) int {
	count := 0
	for _, start := range positions[0] {
		found := true
		for i := 1; i < len(positions); i++ {
			if _, ok := slices.BinarySearch(positions[i], start+i); !ok {
				found = false
				break
			}
		}
		if found {
			count++
		}
	}
	return count
}
