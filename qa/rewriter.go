package qa

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/types"
	"go.uber.org/zap"
)

// RewriterConfig 改写器配置
type RewriterConfig struct {
	Enabled     bool
	WindowSize  int
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	// MaxLength 改写结果的最大字符数，超出视为失败
	MaxLength int
}

// DefaultRewriterConfig 返回默认配置
func DefaultRewriterConfig() RewriterConfig {
	return RewriterConfig{
		Enabled:     true,
		WindowSize:  6,
		Temperature: 0,
		MaxTokens:   256,
		Timeout:     30 * time.Second,
		MaxLength:   1000,
	}
}

// HistoryRewriter 基于对话窗口把追问改写为独立问题。
// 改写失败时回退到原始问题，从不让请求失败。
type HistoryRewriter struct {
	provider llm.Provider
	config   RewriterConfig
	logger   *zap.Logger
}

// NewHistoryRewriter creates a rewriter. provider may be nil, which makes
// every rewrite fall back to the raw question.
func NewHistoryRewriter(provider llm.Provider, config RewriterConfig, logger *zap.Logger) *HistoryRewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRewriter{
		provider: provider,
		config:   config,
		logger:   logger.With(zap.String("component", "rewriter")),
	}
}

// Rewrite returns a standalone version of question. With an empty history
// it returns question unchanged without calling the generation capability.
func (r *HistoryRewriter) Rewrite(ctx context.Context, question string, history []types.ConversationTurn) string {
	window := types.TrailingWindow(history, r.config.WindowSize)
	if len(window) == 0 || !r.config.Enabled {
		return question
	}
	if r.provider == nil {
		r.logger.Warn("no generation provider, using raw question")
		return question
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	resp, err := r.provider.Completion(ctx, &llm.ChatRequest{
		Model: r.config.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: rewriteSystemPrompt},
			{Role: llm.RoleUser, Content: buildRewritePrompt(question, window)},
		},
		MaxTokens:   r.config.MaxTokens,
		Temperature: r.config.Temperature,
	})
	if err != nil {
		r.logger.Warn("rewrite failed, using raw question", zap.Error(err))
		return question
	}

	rewritten := cleanRewrite(resp.FirstContent())
	switch {
	case rewritten == "":
		r.logger.Warn("rewrite returned empty output, using raw question")
		return question
	case r.config.MaxLength > 0 && utf8.RuneCountInString(rewritten) > r.config.MaxLength:
		r.logger.Warn("rewrite output too long, using raw question",
			zap.Int("length", utf8.RuneCountInString(rewritten)),
			zap.Int("max_length", r.config.MaxLength))
		return question
	}

	r.logger.Debug("question rewritten", zap.String("original", question), zap.String("rewritten", rewritten))
	return rewritten
}

func buildRewritePrompt(question string, window []types.ConversationTurn) string {
	var b strings.Builder
	b.WriteString("Conversation:\n")
	for _, turn := range window {
		switch turn.Role {
		case types.RoleUser:
			b.WriteString("User: ")
			b.WriteString(turn.Content)
		case types.RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(turn.GroundedContent())
		default:
			continue
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nFollow-up question: ")
	b.WriteString(question)
	b.WriteString("\n\nStandalone question:")
	return b.String()
}

// cleanRewrite trims a leading label, surrounding quotes and anything after
// the first line.
func cleanRewrite(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"Standalone question:", "Rewritten question:"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.Trim(s, "\"'`“”")
	return strings.TrimSpace(s)
}
