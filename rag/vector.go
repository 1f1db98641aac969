package rag

import (
	"context"
	"fmt"
	"math"

	"github.com/BaSui01/docqa/types"
)

// VectorIndex 扁平余弦索引。只收录维度与索引维度一致的段落向量，
// 向量在构建时预先计算范数。
type VectorIndex struct {
	dims    int
	rows    []int
	vectors [][]float64
	norms   []float64
}

// NewVectorIndex builds a flat index. The index dimension is taken from the
// first passage with an embedding; passages with a different dimension are
// skipped and reported in skipped.
func NewVectorIndex(passages []*Passage) (idx *VectorIndex, skipped int) {
	idx = &VectorIndex{}
	for i, p := range passages {
		if len(p.Embedding) == 0 {
			continue
		}
		if idx.dims == 0 {
			idx.dims = len(p.Embedding)
		}
		if len(p.Embedding) != idx.dims {
			skipped++
			continue
		}
		n := norm(p.Embedding)
		if n == 0 {
			skipped++
			continue
		}
		idx.rows = append(idx.rows, i)
		idx.vectors = append(idx.vectors, p.Embedding)
		idx.norms = append(idx.norms, n)
	}
	return idx, skipped
}

// Dimensions returns the index dimension, 0 when no embedding was loaded.
func (idx *VectorIndex) Dimensions() int { return idx.dims }

// Len returns the number of indexed vectors.
func (idx *VectorIndex) Len() int { return len(idx.vectors) }

// CosineSimilarity returns the cosine similarity of a and b, 0 when either is
// a zero vector or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

// VectorAdapter 余弦相似度检索适配器。
type VectorAdapter struct{}

// NewVectorAdapter creates a vector adapter.
func NewVectorAdapter() *VectorAdapter { return &VectorAdapter{} }

// Method implements Searcher.
func (a *VectorAdapter) Method() Method { return MethodVector }

// Search returns the k passages most similar to q.Embedding. An empty index
// returns no candidates; a query vector whose dimension differs from the
// index is an IndexUnavailable condition.
func (a *VectorAdapter) Search(ctx context.Context, snap *Snapshot, q Query, k int) ([]Candidate, error) {
	if snap == nil || snap.Vector == nil {
		return nil, types.NewIndexUnavailableError("vector index not loaded")
	}
	idx := snap.Vector
	if k <= 0 || idx.Len() == 0 {
		return nil, nil
	}
	if len(q.Embedding) != idx.dims {
		return nil, types.NewIndexUnavailableError(
			fmt.Sprintf("query embedding has %d dimensions, index has %d", len(q.Embedding), idx.dims))
	}
	qn := norm(q.Embedding)
	if qn == 0 {
		return nil, nil
	}

	cands := make([]Candidate, 0, idx.Len())
	for j, vec := range idx.vectors {
		if j%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sim := dot(q.Embedding, vec) / (qn * idx.norms[j])
		cands = append(cands, Candidate{
			Passage: snap.Passages[idx.rows[j]],
			Score:   sim,
			Method:  MethodVector,
		})
	}
	return rankCandidates(cands, k), nil
}
