package rag

import "context"

// Passage 索引中的一个段落。加载后不可变，由快照持有。
type Passage struct {
	ID        string
	Page      int
	Content   string
	Embedding []float64
}

// Method 检索方法
type Method string

const (
	MethodLexical Method = "lexical"
	MethodVector  Method = "vector"
)

// Candidate 单路检索的一个候选结果，Rank 为其在本路列表中的 0 基名次。
type Candidate struct {
	Passage *Passage
	Score   float64
	Rank    int
	Method  Method
}

// FusedPassage 融合后的一个段落及其分数分解。
type FusedPassage struct {
	Passage      *Passage
	Score        float64
	LexicalScore float64
	VectorScore  float64
}

// FusedResult 融合分数严格非递增、无重复 ID 的有序结果。
type FusedResult []FusedPassage

// IDs returns passage IDs in fused order.
func (r FusedResult) IDs() []string {
	ids := make([]string, len(r))
	for i, fp := range r {
		ids[i] = fp.Passage.ID
	}
	return ids
}

// Query 一次检索请求。Embedding 由 HybridRetriever 在发起检索前计算一次。
type Query struct {
	Text      string
	Embedding []float64
}

// Searcher 单路检索适配器。
type Searcher interface {
	Search(ctx context.Context, snap *Snapshot, q Query, k int) ([]Candidate, error)
	Method() Method
}
