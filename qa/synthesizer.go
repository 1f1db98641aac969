package qa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/llm/tokenizer"
	"github.com/BaSui01/docqa/rag"
	"github.com/BaSui01/docqa/types"
	"go.uber.org/zap"
)

// SynthesizerConfig 答案合成配置
type SynthesizerConfig struct {
	Model            string
	Temperature      float32
	MaxTokens        int
	Timeout          time.Duration
	MaxSources       int
	ExcerptLength    int
	MaxContextTokens int
	AppendPageFooter bool
}

// DefaultSynthesizerConfig 返回默认配置
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		Temperature:      0.1,
		MaxTokens:        1024,
		Timeout:          30 * time.Second,
		MaxSources:       3,
		ExcerptLength:    200,
		MaxContextTokens: 3000,
		AppendPageFooter: true,
	}
}

// Answer 合成结果
type Answer struct {
	Text    string
	Sources []types.Source
	// Passages 实际放入上下文的段落数
	Passages int
}

// Synthesizer 基于融合后的段落生成答案并附带来源。
type Synthesizer struct {
	provider llm.Provider
	counter  *tokenizer.Counter
	config   SynthesizerConfig
	logger   *zap.Logger
}

// NewSynthesizer creates a synthesizer. counter may be nil, in which case a
// tiktoken counter for config.Model is created.
func NewSynthesizer(provider llm.Provider, counter *tokenizer.Counter, config SynthesizerConfig, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil {
		counter = tokenizer.NewCounter(config.Model, logger)
	}
	return &Synthesizer{
		provider: provider,
		counter:  counter,
		config:   config,
		logger:   logger.With(zap.String("component", "synthesizer")),
	}
}

// Synthesize answers query from fused. An empty fused result yields the
// fixed no-information answer without a generation call. Generation
// failures, timeouts and empty completions are SynthesisUnavailable; a
// cancelled or expired ctx is returned as is.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, fused rag.FusedResult) (*Answer, error) {
	if len(fused) == 0 {
		return &Answer{Text: NoRelevantInformationAnswer, Sources: []types.Source{}}, nil
	}
	if s.provider == nil {
		return nil, types.NewGenerationUnavailableError("no generation provider configured")
	}

	used := s.pack(fused)
	prompt := buildAnswerPrompt(query, used)

	callCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	resp, err := s.provider.Completion(callCtx, &llm.ChatRequest{
		Model: s.config.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: answerSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := "answer generation failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "answer generation timed out"
		}
		return nil, types.NewSynthesisUnavailableError(msg).WithCause(err)
	}

	text := resp.FirstContent()
	if text == "" {
		return nil, types.NewSynthesisUnavailableError("answer generation returned empty output")
	}

	sources := s.sources(used)
	if s.config.AppendPageFooter && len(sources) > 0 {
		text += pageFooter(sources)
	}

	s.logger.Debug("answer synthesized",
		zap.Int("passages", len(used)),
		zap.Int("sources", len(sources)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return &Answer{Text: text, Sources: sources, Passages: len(used)}, nil
}

// pack keeps passages in fused order until MaxSources passages are taken or
// the token budget is spent. The first passage is always kept. Every packed
// passage gets exactly one source.
func (s *Synthesizer) pack(fused rag.FusedResult) []*rag.Passage {
	used := make([]*rag.Passage, 0, len(fused))
	budget := s.config.MaxContextTokens
	spent := 0
	for i, fp := range fused {
		if limit := s.config.MaxSources; limit > 0 && len(used) >= limit {
			break
		}
		cost := s.counter.Count(passageBlock(i+1, fp.Passage))
		if i > 0 && budget > 0 && spent+cost > budget {
			break
		}
		spent += cost
		used = append(used, fp.Passage)
	}
	return used
}

// sources attributes each packed passage in order. Passages sharing a page
// each keep their own excerpt.
func (s *Synthesizer) sources(used []*rag.Passage) []types.Source {
	out := make([]types.Source, len(used))
	for i, p := range used {
		out[i] = types.Source{Page: p.Page, Content: Excerpt(p.Content, s.config.ExcerptLength)}
	}
	return out
}

// Excerpt returns the first n runes of content followed by "..." when it was
// truncated. n <= 0 returns content unchanged.
func Excerpt(content string, n int) string {
	if n <= 0 {
		return content
	}
	count := 0
	for i := range content {
		if count == n {
			return content[:i] + "..."
		}
		count++
	}
	return content
}

func passageBlock(n int, p *rag.Passage) string {
	return fmt.Sprintf("[%d] (page %d)\n%s", n, p.Page, p.Content)
}

func buildAnswerPrompt(query string, used []*rag.Passage) string {
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for i, p := range used {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(passageBlock(i+1, p))
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// pageFooter renders "\n\nRelevant pages: p1, p2" with distinct ascending pages.
func pageFooter(sources []types.Source) string {
	seen := make(map[int]bool, len(sources))
	pages := make([]int, 0, len(sources))
	for _, src := range sources {
		if !seen[src.Page] {
			seen[src.Page] = true
			pages = append(pages, src.Page)
		}
	}
	sort.Ints(pages)
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return types.PageFooterMarker + " " + strings.Join(parts, ", ")
}
