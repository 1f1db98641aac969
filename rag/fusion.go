package rag

import "sort"

// DefaultFusionWeight 词法一侧的默认权重
const DefaultFusionWeight = 0.5

type fuseEntry struct {
	passage  *Passage
	lex, vec float64
	lexRank  int // -1 表示不在词法列表中
	vecRank  int // -1 表示不在向量列表中
	score    float64
}

// Fuse merges the two candidate lists into one ranking. Both lists are in
// rank order, so a candidate's position is its rank.
//
// Each list is min-max normalised on its own; a list whose scores are all
// equal normalises to 1.0. fused = weight*lexical + (1-weight)*vector, a
// missing side contributing 0. Equal fused scores are ordered by lexical
// rank, then vector rank (absent after present), then passage ID. The result
// holds at most topN passages and never repeats an ID.
func Fuse(lexical, vector []Candidate, weight float64, topN int) FusedResult {
	if topN <= 0 || (len(lexical) == 0 && len(vector) == 0) {
		return FusedResult{}
	}
	if weight < 0 {
		weight = 0
	} else if weight > 1 {
		weight = 1
	}

	entries := make(map[string]*fuseEntry, len(lexical)+len(vector))
	order := make([]*fuseEntry, 0, len(lexical)+len(vector))
	get := func(p *Passage) *fuseEntry {
		e, ok := entries[p.ID]
		if !ok {
			e = &fuseEntry{passage: p, lexRank: -1, vecRank: -1}
			entries[p.ID] = e
			order = append(order, e)
		}
		return e
	}

	lexNorm := minMax(lexical)
	for i, c := range lexical {
		e := get(c.Passage)
		if e.lexRank >= 0 {
			continue
		}
		e.lex = lexNorm[i]
		e.lexRank = i
	}
	vecNorm := minMax(vector)
	for i, c := range vector {
		e := get(c.Passage)
		if e.vecRank >= 0 {
			continue
		}
		e.vec = vecNorm[i]
		e.vecRank = i
	}

	for _, e := range order {
		e.score = weight*e.lex + (1-weight)*e.vec
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if c := compareRank(a.lexRank, b.lexRank); c != 0 {
			return c < 0
		}
		if c := compareRank(a.vecRank, b.vecRank); c != 0 {
			return c < 0
		}
		return a.passage.ID < b.passage.ID
	})

	if len(order) > topN {
		order = order[:topN]
	}
	out := make(FusedResult, len(order))
	for i, e := range order {
		out[i] = FusedPassage{
			Passage:      e.passage,
			Score:        e.score,
			LexicalScore: e.lex,
			VectorScore:  e.vec,
		}
	}
	return out
}

// minMax normalises candidate scores into [0,1].
func minMax(cands []Candidate) []float64 {
	out := make([]float64, len(cands))
	if len(cands) == 0 {
		return out
	}
	lo, hi := cands[0].Score, cands[0].Score
	for _, c := range cands[1:] {
		if c.Score < lo {
			lo = c.Score
		}
		if c.Score > hi {
			hi = c.Score
		}
	}
	span := hi - lo
	for i, c := range cands {
		if span == 0 {
			out[i] = 1
			continue
		}
		out[i] = (c.Score - lo) / span
	}
	return out
}

// compareRank orders present ranks ascending before absent (-1) ones.
func compareRank(a, b int) int {
	switch {
	case a == b:
		return 0
	case a < 0:
		return 1
	case b < 0:
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}
