// Package merger selects the best k scored candidates with a bounded
// min-heap. Ties on score go to the candidate seen first.
package merger

import (
	"container/heap"
)

// Candidate is a scored document. Seq is the order in which the document
// was first encountered and breaks score ties.
type Candidate struct {
	Doc   uint32
	Score float64
	Seq   int
}

// TopK keeps the k best candidates offered to it.
type TopK struct {
	k int
	h candidateHeap
}

func NewTopK(k int) *TopK {
	return &TopK{k: k, h: make(candidateHeap, 0, min(k, 1024))}
}

func (t *TopK) Offer(c Candidate) {
	if t.k <= 0 {
		return
	}
	if t.h.Len() < t.k {
		heap.Push(&t.h, c)
		return
	}
	if worse(t.h[0], c) {
		t.h[0] = c
		heap.Fix(&t.h, 0)
	}
}

// Results drains the collector, best first.
func (t *TopK) Results() []Candidate {
	result := make([]Candidate, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(Candidate)
	}
	return result
}

// worse reports whether a ranks below b.
func worse(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Seq > b.Seq
}

type candidateHeap []Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool { return worse(h[i], h[j]) }

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
