package rag

import (
	"context"
	"sync/atomic"
)

// contractPassages is a small corpus shared by the package tests.
func contractPassages() []*Passage {
	return []*Passage{
		{ID: "p1", Page: 1, Content: "This agreement starts on the effective date.", Embedding: []float64{1, 0, 0}},
		{ID: "p2", Page: 4, Content: "Termination clause: either party may terminate with thirty days notice.", Embedding: []float64{0, 1, 0}},
		{ID: "p3", Page: 7, Content: "Payment terms are net thirty days after invoice.", Embedding: []float64{0, 0, 1}},
		{ID: "p4", Page: 9, Content: "Upon termination all confidential material must be returned.", Embedding: []float64{0, 0.8, 0.6}},
	}
}

func newTestSnapshot(passages []*Passage) *Snapshot {
	return NewSnapshot("test", passages, DefaultBM25K1, DefaultBM25B)
}

// fixedEmbedder returns the same vector for every query.
type fixedEmbedder struct {
	vec   []float64
	err   error
	calls atomic.Int64
}

func (e *fixedEmbedder) EmbedQuery(_ context.Context, _ string) ([]float64, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

// failingSearcher always fails.
type failingSearcher struct {
	method Method
	err    error
}

func (s failingSearcher) Search(context.Context, *Snapshot, Query, int) ([]Candidate, error) {
	return nil, s.err
}

func (s failingSearcher) Method() Method { return s.method }
