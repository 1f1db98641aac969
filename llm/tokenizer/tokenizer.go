package tokenizer

import (
	"sync"

	"go.uber.org/zap"
)

// Tokenizer 是统一的 Token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// Counter 优先使用 tiktoken 精确计数，编码不可用时（例如离线环境无法
// 下载 BPE 文件）回退到估算器。Counter 本身从不返回错误。
type Counter struct {
	primary  Tokenizer
	fallback *EstimatorTokenizer
	logger   *zap.Logger
	warnOnce sync.Once
}

// NewCounter 为模型创建计数器.
func NewCounter(model string, logger *zap.Logger) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{
		primary:  NewTiktokenTokenizer(model),
		fallback: NewEstimatorTokenizer(),
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

// NewCounterWith 使用自定义的主分词器.
func NewCounterWith(primary Tokenizer, logger *zap.Logger) *Counter {
	c := NewCounter("", logger)
	c.primary = primary
	return c
}

// Count 返回 token 数.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	n, err := c.primary.CountTokens(text)
	if err == nil {
		return n
	}
	c.warnOnce.Do(func() {
		c.logger.Warn("tokenizer unavailable, using estimator",
			zap.String("tokenizer", c.primary.Name()),
			zap.Error(err))
	})
	n, _ = c.fallback.CountTokens(text)
	return n
}
