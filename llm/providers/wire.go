package providers

import (
	"time"

	"github.com/BaSui01/docqa/llm"
)

// OpenAI Chat Completions 线格式，仅包含非流式调用用到的字段

type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []WireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
	Stop        []string      `json:"stop,omitempty"`
}

type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      WireMessage `json:"message"`
}

type WireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *WireUsage             `json:"usage,omitempty"`
	Created int64                  `json:"created,omitempty"`
}

// NewChatCompletionRequest 由统一请求构造线格式请求，model 由调用方选定
func NewChatCompletionRequest(model string, req *llm.ChatRequest) ChatCompletionRequest {
	msgs := make([]WireMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = WireMessage{Role: string(m.Role), Content: m.Content}
	}
	return ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}
}

// ToChatResponse 转换为统一响应
func (r ChatCompletionResponse) ToChatResponse(provider string) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		ID:       r.ID,
		Provider: provider,
		Model:    r.Model,
		Choices:  make([]llm.ChatChoice, len(r.Choices)),
	}
	for i, c := range r.Choices {
		resp.Choices[i] = llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      llm.Message{Role: llm.Role(c.Message.Role), Content: c.Message.Content},
		}
	}
	if r.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		}
	}
	if r.Created != 0 {
		resp.CreatedAt = time.Unix(r.Created, 0)
	}
	return resp
}

// ChooseModel 按 请求 → 默认 → 兜底 的顺序选择模型
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	switch {
	case req != nil && req.Model != "":
		return req.Model
	case defaultModel != "":
		return defaultModel
	default:
		return fallbackModel
	}
}
