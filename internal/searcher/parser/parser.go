// Package parser turns a raw query string into a conjunction of term and
// phrase nodes, analysed with the same analyzer the index was built with.
//
// Grammar: a double-quoted span is a phrase whose words must occur
// contiguously and in order; every other whitespace-delimited span becomes
// zero or more terms. There are no operators.
package parser

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
)

type NodeKind int

const (
	NodeTerm NodeKind = iota
	NodePhrase
)

func (k NodeKind) String() string {
	switch k {
	case NodeTerm:
		return "term"
	case NodePhrase:
		return "phrase"
	default:
		return "unknown"
	}
}

// Node is one conjunct. A term node has exactly one analysed term; a phrase
// node has two or more, in query order.
type Node struct {
	Kind  NodeKind `json:"kind"`
	Terms []string `json:"terms"`
}

func (n Node) String() string {
	if n.Kind == NodePhrase {
		return `"` + strings.Join(n.Terms, " ") + `"`
	}
	return n.Terms[0]
}

func (n Node) equal(o Node) bool {
	return n.Kind == o.Kind && slices.Equal(n.Terms, o.Terms)
}

// Query is immutable once returned by Parse.
type Query struct {
	Raw   string
	Nodes []Node
	// Surface holds the lower-cased, unstemmed query words used for
	// highlighting, without stop words.
	Surface []string
	// Dropped holds query words ignored as stop words.
	Dropped []string
}

// Empty reports whether the query has no nodes and so matches nothing.
func (q *Query) Empty() bool {
	return len(q.Nodes) == 0
}

// String is the canonical form: analysed nodes in query order.
func (q *Query) String() string {
	parts := make([]string, len(q.Nodes))
	for i, n := range q.Nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, " ")
}

// Parse fails only on structurally malformed input. A query whose every word
// is a stop word parses to an empty Query.
func Parse(raw string, analyzer *tokenizer.Analyzer) (*Query, error) {
	if analyzer == nil {
		analyzer = tokenizer.Default
	}
	if n := strings.Count(raw, `"`); n%2 != 0 {
		pos := strings.LastIndex(raw, `"`)
		return nil, fmt.Errorf("%w: unterminated quote at offset %d", apperrors.ErrQuerySyntax, pos)
	}

	q := &Query{Raw: raw}
	// Splitting on quotes alternates free text and phrase bodies.
	for i, segment := range strings.Split(raw, `"`) {
		if i%2 == 1 {
			q.addPhrase(analyzer, segment)
		} else {
			for _, span := range strings.Fields(segment) {
				for _, term := range analyzer.Terms(span) {
					q.addNode(Node{Kind: NodeTerm, Terms: []string{term}})
				}
			}
		}
		q.collectSurface(analyzer, segment)
	}
	return q, nil
}

func (q *Query) addPhrase(analyzer *tokenizer.Analyzer, body string) {
	terms := analyzer.Terms(body)
	switch len(terms) {
	case 0:
	case 1:
		q.addNode(Node{Kind: NodeTerm, Terms: terms})
	default:
		q.addNode(Node{Kind: NodePhrase, Terms: terms})
	}
}

// addNode appends n unless an identical node is already present.
func (q *Query) addNode(n Node) {
	for _, existing := range q.Nodes {
		if existing.equal(n) {
			return
		}
	}
	q.Nodes = append(q.Nodes, n)
}

func (q *Query) collectSurface(analyzer *tokenizer.Analyzer, text string) {
	for word := range tokenizer.Words(text) {
		lower := strings.ToLower(word)
		switch {
		case analyzer.IsStopWord(lower):
			if !slices.Contains(q.Dropped, lower) {
				q.Dropped = append(q.Dropped, lower)
			}
		default:
			if _, ok := analyzer.Normalize(lower); ok && !slices.Contains(q.Surface, lower) {
				q.Surface = append(q.Surface, lower)
			}
		}
	}
}
