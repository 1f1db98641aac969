// Package mocks 提供问答管线测试用的替身：生成能力、检索适配器与查询向量化。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/docqa/llm"
)

// CompletionFunc 按请求定制响应
type CompletionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

// MockProvider 是 llm.Provider 的替身。优先级：延迟 → 预设错误 →
// CompletionFunc → 固定文本。
type MockProvider struct {
	mu       sync.Mutex
	text     string
	err      error
	delay    time.Duration
	fn       CompletionFunc
	healthy  bool
	requests []*llm.ChatRequest
}

var _ llm.Provider = (*MockProvider)(nil)

// NewMockProvider 返回固定回答 "Mock response" 的替身
func NewMockProvider() *MockProvider {
	return &MockProvider{text: "Mock response", healthy: true}
}

// WithResponse 设置固定回答
func (m *MockProvider) WithResponse(text string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return m
}

// WithError 让每次调用都失败
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 在响应前等待 d，期间 ctx 取消则返回 ctx.Err()
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithCompletionFunc 按请求定制响应
func (m *MockProvider) WithCompletionFunc(fn CompletionFunc) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// WithUnhealthy 让 HealthCheck 报告失败
func (m *MockProvider) WithUnhealthy() *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = false
	return m
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return &llm.HealthStatus{Healthy: false}, errors.New("mock provider: unhealthy")
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	text, err, delay, fn := m.text, m.err, m.delay, m.fn
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch {
	case err != nil:
		return nil, err
	case fn != nil:
		return fn(ctx, req)
	}

	resp := Response(text)
	resp.Model = req.Model
	return resp, nil
}

// CallCount 返回 Completion 被调用的次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest 返回最后一次请求，没有调用时返回 nil
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Response 构造只有一个 choice 的 ChatResponse
func Response(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "mock-response-id",
		Provider: "mock",
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
		CreatedAt: time.Now(),
	}
}
