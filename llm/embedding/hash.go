package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder 基于特征哈希（hashing trick）的本地向量化。
// 无需外部服务，摄取侧使用相同维度即可得到可比较的向量。
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder 创建指定维度的哈希向量化器.
func NewHashEmbedder(dims int) (*HashEmbedder, error) {
	if dims <= 0 {
		return nil, errors.New("hash embedder dimensions must be positive")
	}
	return &HashEmbedder{dims: dims}, nil
}

func (h *HashEmbedder) Name() string    { return "hash" }
func (h *HashEmbedder) Dimensions() int { return h.dims }

// EmbedQuery 计算 L2 归一化的词频哈希向量。空文本返回零向量。
func (h *HashEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.Embed(query), nil
}

// Embed 同步计算向量.
func (h *HashEmbedder) Embed(text string) []float64 {
	vec := make([]float64, h.dims)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dims))
		// 最高位决定符号，降低碰撞带来的偏差
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
