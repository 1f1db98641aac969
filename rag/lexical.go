package rag

import (
	"context"
	"math"
	"sort"

	"github.com/BaSui01/docqa/types"
)

// BM25 defaults.
const (
	DefaultBM25K1 = 1.5
	DefaultBM25B  = 0.75
)

// LexicalIndex 预计算的 BM25 倒排统计。构建后只读，可并发查询。
type LexicalIndex struct {
	k1, b     float64
	avgDocLen float64
	docLens   []int
	termFreq  []map[string]int
	docFreq   map[string]int
	idf       map[string]float64
}

// NewLexicalIndex builds BM25 statistics over passages. Non-positive k1 or
// negative b fall back to the defaults.
func NewLexicalIndex(passages []*Passage, k1, b float64) *LexicalIndex {
	if k1 <= 0 {
		k1 = DefaultBM25K1
	}
	if b < 0 || b > 1 {
		b = DefaultBM25B
	}
	idx := &LexicalIndex{
		k1:       k1,
		b:        b,
		docLens:  make([]int, len(passages)),
		termFreq: make([]map[string]int, len(passages)),
		docFreq:  make(map[string]int),
		idf:      make(map[string]float64),
	}

	total := 0
	for i, p := range passages {
		tokens := Tokenize(p.Content)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			idx.docFreq[term]++
		}
		idx.termFreq[i] = tf
		idx.docLens[i] = len(tokens)
		total += len(tokens)
	}
	if n := len(passages); n > 0 {
		idx.avgDocLen = float64(total) / float64(n)
	}

	n := float64(len(passages))
	for term, df := range idx.docFreq {
		d := float64(df)
		idx.idf[term] = math.Log((n-d+0.5)/(d+0.5) + 1)
	}
	return idx
}

// Len returns the number of indexed passages.
func (idx *LexicalIndex) Len() int { return len(idx.docLens) }

// Score returns the BM25 score of passage i for the query tokens. Repeated
// query tokens contribute once per occurrence.
func (idx *LexicalIndex) Score(i int, queryTokens []string) float64 {
	tf := idx.termFreq[i]
	docLen := float64(idx.docLens[i])
	norm := 1.0
	if idx.avgDocLen > 0 {
		norm = 1 - idx.b + idx.b*docLen/idx.avgDocLen
	}

	score := 0.0
	for _, term := range queryTokens {
		f, ok := tf[term]
		if !ok {
			continue
		}
		freq := float64(f)
		score += idx.idf[term] * freq * (idx.k1 + 1) / (freq + idx.k1*norm)
	}
	return score
}

// LexicalAdapter BM25 检索适配器。
type LexicalAdapter struct{}

// NewLexicalAdapter creates a lexical adapter.
func NewLexicalAdapter() *LexicalAdapter { return &LexicalAdapter{} }

// Method implements Searcher.
func (a *LexicalAdapter) Method() Method { return MethodLexical }

// Search returns up to k passages with a positive BM25 score, best first,
// ties broken by passage ID.
func (a *LexicalAdapter) Search(ctx context.Context, snap *Snapshot, q Query, k int) ([]Candidate, error) {
	if snap == nil || snap.Lexical == nil {
		return nil, types.NewIndexUnavailableError("lexical index not loaded")
	}
	if k <= 0 {
		return nil, nil
	}
	tokens := Tokenize(q.Text)
	if len(tokens) == 0 {
		return nil, nil
	}

	var cands []Candidate
	for i, p := range snap.Passages {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if s := snap.Lexical.Score(i, tokens); s > 0 {
			cands = append(cands, Candidate{Passage: p, Score: s, Method: MethodLexical})
		}
	}
	return rankCandidates(cands, k), nil
}

// rankCandidates sorts by score descending then ID ascending, truncates to k
// and assigns ranks.
func rankCandidates(cands []Candidate, k int) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Passage.ID < cands[j].Passage.ID
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	for i := range cands {
		cands[i].Rank = i
	}
	return cands
}
