package qa

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/llm/tokenizer"
	"github.com/BaSui01/docqa/rag"
	"github.com/BaSui01/docqa/testutil/fixtures"
	"github.com/BaSui01/docqa/testutil/mocks"
	"github.com/BaSui01/docqa/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func estimatorCounter() *tokenizer.Counter {
	return tokenizer.NewCounterWith(tokenizer.NewEstimatorTokenizer(), zap.NewNop())
}

func newTestSynthesizer(provider llm.Provider, mutate func(*SynthesizerConfig)) *Synthesizer {
	cfg := DefaultSynthesizerConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewSynthesizer(provider, estimatorCounter(), cfg, zap.NewNop())
}

func fusedOf(passages ...*rag.Passage) rag.FusedResult {
	out := make(rag.FusedResult, len(passages))
	for i, p := range passages {
		out[i] = rag.FusedPassage{Passage: p, Score: 1 - float64(i)*0.1}
	}
	return out
}

func TestSynthesizer_EmptyResultSkipsGeneration(t *testing.T) {
	provider := mocks.NewMockProvider()
	s := newTestSynthesizer(provider, nil)

	ans, err := s.Synthesize(context.Background(), "anything", nil)

	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformationAnswer, ans.Text)
	assert.NotNil(t, ans.Sources)
	assert.Empty(t, ans.Sources)
	assert.Equal(t, 0, provider.CallCount())
}

func TestSynthesizer_AnswerWithSourcesAndFooter(t *testing.T) {
	c := fixtures.ContractPassages()
	provider := mocks.NewMockProvider().WithResponse("Either party may terminate with thirty days notice.")
	s := newTestSynthesizer(provider, nil)

	ans, err := s.Synthesize(context.Background(), "What is the termination clause?", fusedOf(c[3], c[1]))

	require.NoError(t, err)
	assert.Equal(t, "Either party may terminate with thirty days notice.\n\nRelevant pages: 4, 9", ans.Text)
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, 9, ans.Sources[0].Page)
	assert.Equal(t, 4, ans.Sources[1].Page)
	assert.Equal(t, c[1].Content, ans.Sources[1].Content)
	assert.Equal(t, 2, ans.Passages)

	prompt := provider.LastRequest().Messages[1].Content
	assert.Contains(t, prompt, "[1] (page 9)\n"+c[3].Content)
	assert.Contains(t, prompt, "[2] (page 4)\n"+c[1].Content)
	assert.True(t, strings.HasSuffix(prompt, "Question: What is the termination clause?\n\nAnswer:"))
}

func TestSynthesizer_OneSourcePerPackedPassage(t *testing.T) {
	passages := []*rag.Passage{
		{ID: "a", Page: 2, Content: "alpha"},
		{ID: "b", Page: 2, Content: "beta"},
		{ID: "c", Page: 5, Content: "gamma"},
		{ID: "d", Page: 1, Content: "delta"},
		{ID: "e", Page: 8, Content: "epsilon"},
	}
	provider := mocks.NewMockProvider().WithResponse("ok")
	s := newTestSynthesizer(provider, nil)

	ans, err := s.Synthesize(context.Background(), "q", fusedOf(passages...))

	require.NoError(t, err)
	require.Len(t, ans.Sources, ans.Passages)
	assert.Equal(t, DefaultSynthesizerConfig().MaxSources, ans.Passages)

	pages := make([]int, 0, len(ans.Sources))
	for _, src := range ans.Sources {
		pages = append(pages, src.Page)
	}
	assert.Equal(t, []int{2, 2, 5}, pages)
	assert.Equal(t, "alpha", ans.Sources[0].Content)
	assert.Equal(t, "beta", ans.Sources[1].Content)
	assert.Equal(t, "ok\n\nRelevant pages: 2, 5", ans.Text)

	// 上下文中的段落与来源一一对应
	prompt := provider.LastRequest().Messages[1].Content
	assert.Contains(t, prompt, "[3] (page 5)\ngamma")
	assert.NotContains(t, prompt, "delta")
	assert.NotContains(t, prompt, "epsilon")
}

func TestSynthesizer_DistinctPagesAllCited(t *testing.T) {
	passages := make([]*rag.Passage, 5)
	for i := range passages {
		passages[i] = &rag.Passage{ID: strconv.Itoa(i), Page: i + 1, Content: "clause " + strconv.Itoa(i)}
	}
	s := newTestSynthesizer(mocks.NewMockProvider().WithResponse("ok"), func(c *SynthesizerConfig) {
		c.MaxSources = 5
		c.AppendPageFooter = false
	})

	ans, err := s.Synthesize(context.Background(), "q", fusedOf(passages...))

	require.NoError(t, err)
	assert.Equal(t, 5, ans.Passages)
	assert.Len(t, ans.Sources, 5)
}

func TestSynthesizer_ContextBudget(t *testing.T) {
	long := strings.Repeat("word ", 200)
	passages := []*rag.Passage{
		{ID: "a", Page: 1, Content: long},
		{ID: "b", Page: 2, Content: long},
		{ID: "c", Page: 3, Content: "short"},
	}
	provider := mocks.NewMockProvider().WithResponse("ok")
	s := newTestSynthesizer(provider, func(c *SynthesizerConfig) { c.MaxContextTokens = 10 })

	ans, err := s.Synthesize(context.Background(), "q", fusedOf(passages...))

	require.NoError(t, err)
	assert.Equal(t, 1, ans.Passages, "first passage is kept even over budget")
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, 1, ans.Sources[0].Page)
	assert.NotContains(t, provider.LastRequest().Messages[1].Content, "(page 2)")
}

func TestSynthesizer_Failures(t *testing.T) {
	c := fixtures.ContractPassages()
	fused := fusedOf(c[1])

	t.Run("no provider", func(t *testing.T) {
		_, err := newTestSynthesizer(nil, nil).Synthesize(context.Background(), "q", fused)
		assert.True(t, types.IsErrorCode(err, types.ErrGenerationUnavailable))
	})

	t.Run("generation error", func(t *testing.T) {
		s := newTestSynthesizer(mocks.NewMockProvider().WithError(errors.New("upstream down")), nil)
		_, err := s.Synthesize(context.Background(), "q", fused)
		assert.True(t, types.IsErrorCode(err, types.ErrSynthesisUnavailable))
	})

	t.Run("empty completion", func(t *testing.T) {
		s := newTestSynthesizer(mocks.NewMockProvider().WithResponse(" \n "), nil)
		_, err := s.Synthesize(context.Background(), "q", fused)
		assert.True(t, types.IsErrorCode(err, types.ErrSynthesisUnavailable))
	})

	t.Run("generation timeout", func(t *testing.T) {
		s := newTestSynthesizer(mocks.NewMockProvider().WithDelay(time.Second), func(c *SynthesizerConfig) {
			c.Timeout = 20 * time.Millisecond
		})
		_, err := s.Synthesize(context.Background(), "q", fused)
		assert.True(t, types.IsErrorCode(err, types.ErrSynthesisUnavailable))
	})

	t.Run("caller deadline", func(t *testing.T) {
		s := newTestSynthesizer(mocks.NewMockProvider().WithDelay(time.Second), nil)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := s.Synthesize(ctx, "q", fused)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 200))
	assert.Equal(t, "abcde", Excerpt("abcde", 5))
	assert.Equal(t, "abc...", Excerpt("abcdef", 3))
	assert.Equal(t, "终止条...", Excerpt("终止条款内容", 3))
	assert.Equal(t, "abcdef", Excerpt("abcdef", 0))
	assert.Equal(t, 203, len([]rune(Excerpt(strings.Repeat("x", 500), 200))))
}
