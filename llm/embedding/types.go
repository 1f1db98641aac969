// Package embedding 提供查询向量化：OpenAI 兼容接口与本地特征哈希两种实现。
//
// 索引产物中的段落向量由摄取流程离线生成，查询必须使用同一模型
// （或同一哈希维度）向量化，否则余弦相似度无意义。
package embedding

import (
	"context"
	"errors"
)

// ErrDimensionMismatch 服务端返回的向量维度与配置不一致
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder 将查询文本转换为向量.
type Embedder interface {
	// EmbedQuery 向量化单个查询.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// Name 返回提供者名称.
	Name() string

	// Dimensions 返回向量维度，0 表示由服务端决定.
	Dimensions() int
}

var (
	_ Embedder = (*RemoteEmbedder)(nil)
	_ Embedder = (*HashEmbedder)(nil)
)
