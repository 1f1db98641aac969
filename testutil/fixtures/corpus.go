// Package fixtures 提供测试数据工厂：小型合同语料与 SQLite 索引制品。
package fixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/BaSui01/docqa/rag"
)

// ContractPassages 返回一份四段的合同语料，向量为 3 维。
func ContractPassages() []*rag.Passage {
	return []*rag.Passage{
		{ID: "p1", Page: 1, Content: "This agreement starts on the effective date.", Embedding: []float64{1, 0, 0}},
		{ID: "p2", Page: 4, Content: "Termination clause: either party may terminate with thirty days notice.", Embedding: []float64{0, 1, 0}},
		{ID: "p3", Page: 7, Content: "Payment terms are net thirty days after invoice.", Embedding: []float64{0, 0, 1}},
		{ID: "p4", Page: 9, Content: "Upon termination all confidential material must be returned.", Embedding: []float64{0, 0.8, 0.6}},
	}
}

// TerminationQueryVector 与终止条款段落方向一致的查询向量。
func TerminationQueryVector() []float64 { return []float64{0, 1, 0.1} }

// ContractSnapshot 返回基于 ContractPassages 的内存快照。
func ContractSnapshot() *rag.Snapshot {
	return rag.NewSnapshot("fixture", ContractPassages(), rag.DefaultBM25K1, rag.DefaultBM25B)
}

// WriteArtifact 在临时目录写入一个 SQLite 制品并返回路径。
func WriteArtifact(t testing.TB, passages []*rag.Passage, version string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	if err := rag.WriteArtifact(context.Background(), path, passages, version); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}
