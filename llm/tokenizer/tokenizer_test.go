package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type failingTokenizer struct{ calls int }

func (f *failingTokenizer) CountTokens(string) (int, error) {
	f.calls++
	return 0, errors.New("encoding unavailable")
}

func (f *failingTokenizer) Name() string { return "failing" }

func TestEstimatorTokenizer(t *testing.T) {
	e := NewEstimatorTokenizer()

	n, err := e.CountTokens("")
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	n, _ = e.CountTokens("a")
	assert.Equal(t, 1, n)

	n, _ = e.CountTokens(strings.Repeat("abcd", 10))
	assert.Equal(t, 10, n)

	n, _ = e.CountTokens("你好世界你好世")
	assert.Equal(t, 4, n)

	// 假名与谚文按表意文字计
	n, _ = e.CountTokens("こんにちは")
	assert.Equal(t, 3, n)
	n, _ = e.CountTokens("안녕하세요 world")
	assert.Equal(t, 4, n)
	assert.Equal(t, "estimator", e.Name())
}

func TestEncodingForModel(t *testing.T) {
	assert.Equal(t, "o200k_base", EncodingForModel("gpt-4o-mini"))
	assert.Equal(t, "cl100k_base", EncodingForModel("gpt-4-turbo"))
	assert.Equal(t, "cl100k_base", EncodingForModel("llama-3.1-8b-instant"))
}

func TestCounter_FallsBackToEstimator(t *testing.T) {
	primary := &failingTokenizer{}
	c := NewCounterWith(primary, zap.NewNop())

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 10, c.Count(strings.Repeat("abcd", 10)))
	assert.Equal(t, 10, c.Count(strings.Repeat("wxyz", 10)))
	assert.Equal(t, 2, primary.calls)
}

func TestTiktokenTokenizer(t *testing.T) {
	tok := NewTiktokenTokenizer("gpt-4o")
	assert.Equal(t, "tiktoken[o200k_base]", tok.Name())

	n, err := tok.CountTokens("hello world")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	assert.Equal(t, 2, n)
}
