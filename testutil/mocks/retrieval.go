package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/docqa/rag"
)

// CountingSearcher 包装一个 rag.Searcher 并统计调用次数，可注入错误或阻塞。
type CountingSearcher struct {
	inner rag.Searcher
	calls atomic.Int64

	mu    sync.RWMutex
	err   error
	block chan struct{}
}

// NewCountingSearcher wraps inner.
func NewCountingSearcher(inner rag.Searcher) *CountingSearcher {
	return &CountingSearcher{inner: inner}
}

// WithError makes every search fail with err.
func (s *CountingSearcher) WithError(err error) *CountingSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// WithBlock makes searches wait until ch is closed.
func (s *CountingSearcher) WithBlock(ch chan struct{}) *CountingSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = ch
	return s
}

// Method implements rag.Searcher.
func (s *CountingSearcher) Method() rag.Method { return s.inner.Method() }

// Search implements rag.Searcher.
func (s *CountingSearcher) Search(ctx context.Context, snap *rag.Snapshot, q rag.Query, k int) ([]rag.Candidate, error) {
	s.calls.Add(1)
	s.mu.RLock()
	err, block := s.err, s.block
	s.mu.RUnlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return s.inner.Search(ctx, snap, q, k)
}

// Calls returns how many searches ran.
func (s *CountingSearcher) Calls() int64 { return s.calls.Load() }

// StaticEmbedder 返回固定向量，或按文本查表。
type StaticEmbedder struct {
	Vector []float64
	ByText map[string][]float64
	Err    error
	calls  atomic.Int64
}

// EmbedQuery implements rag.QueryEmbedder.
func (e *StaticEmbedder) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	if v, ok := e.ByText[text]; ok {
		return v, nil
	}
	return e.Vector, nil
}

// Calls returns how many embeddings were requested.
func (e *StaticEmbedder) Calls() int64 { return e.calls.Load() }
