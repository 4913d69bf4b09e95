// Package ranker holds the term-weighting strategies used to score
// candidate documents.
package ranker

import (
	"fmt"
	"math"
)

// Weighting scores one query node for one document given the node's
// frequency in the document (tf), the number of documents containing it
// (df), and the number of documents in the index (n).
type Weighting interface {
	TermScore(tf, df, n int) float64
}

// WeightingFunc adapts a plain function to Weighting.
type WeightingFunc func(tf, df, n int) float64

func (f WeightingFunc) TermScore(tf, df, n int) float64 {
	return f(tf, df, n)
}

// TFIDF is log-smoothed tf times ln(N/df):
//
//	tf' = 1 + ln(tf)  if tf > 0, else 0
//	idf = ln(N / df)  if df > 0, else 0
//
// A term present in every document, including the single document of a
// one-document index, has idf 0 and so scores 0.
type TFIDF struct{}

func (TFIDF) TermScore(tf, df, n int) float64 {
	return SmoothedTF(tf) * IDF(df, n)
}

func SmoothedTF(tf int) float64 {
	if tf <= 0 {
		return 0
	}
	return 1 + math.Log(float64(tf))
}

func IDF(df, n int) float64 {
	if df <= 0 || n <= 0 {
		return 0
	}
	return math.Log(float64(n) / float64(df))
}

// ByName resolves a configured weighting name.
func ByName(name string) (Weighting, error) {
	switch name {
	case "", "tfidf":
		return TFIDF{}, nil
	default:
		return nil, fmt.Errorf("unknown weighting %q", name)
	}
}
