package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	resp *ChatResponse
	err  error
}

func (s *stubProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return s.resp, s.err
}

func (s *stubProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: s.err == nil}, s.err
}

func (s *stubProvider) Name() string { return "stub" }

type recordedGeneration struct {
	provider, model, status string
	prompt, completion      int
}

type recorder struct {
	mu    sync.Mutex
	calls []recordedGeneration
}

func (r *recorder) RecordGeneration(provider, model, status string, _ time.Duration, prompt, completion int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedGeneration{provider, model, status, prompt, completion})
}

func TestChatResponse_FirstContent(t *testing.T) {
	var nilResp *ChatResponse
	assert.Equal(t, "", nilResp.FirstContent())
	assert.Equal(t, "", (&ChatResponse{}).FirstContent())

	resp := &ChatResponse{Choices: []ChatChoice{{Message: Message{Role: RoleAssistant, Content: "  hi \n"}}}}
	assert.Equal(t, "hi", resp.FirstContent())
}

func TestInstrumentedProvider_Success(t *testing.T) {
	rec := &recorder{}
	inner := &stubProvider{resp: &ChatResponse{
		Choices: []ChatChoice{{Message: Message{Content: "ok"}}},
		Usage:   ChatUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
	}}
	p := NewInstrumentedProvider(inner, rec, zap.NewNop())

	resp, err := p.Completion(context.Background(), &ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.FirstContent())
	assert.Equal(t, "stub", p.Name())

	require.Len(t, rec.calls, 1)
	assert.Equal(t, recordedGeneration{"stub", "m", "success", 12, 3}, rec.calls[0])
}

func TestInstrumentedProvider_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"llm error", &Error{Code: ErrRateLimited, Message: "slow down"}, "LLM_RATE_LIMITED"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"plain", errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			p := NewInstrumentedProvider(&stubProvider{err: tt.err}, rec, nil)
			_, err := p.Completion(context.Background(), &ChatRequest{Model: "m"})
			require.ErrorIs(t, err, tt.err)
			require.Len(t, rec.calls, 1)
			assert.Equal(t, tt.status, rec.calls[0].status)
		})
	}
}

func TestInstrumentedProvider_NilMetrics(t *testing.T) {
	p := NewInstrumentedProvider(&stubProvider{resp: &ChatResponse{}}, nil, nil)
	_, err := p.Completion(context.Background(), &ChatRequest{})
	assert.NoError(t, err)

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&Error{Code: ErrRateLimited, Retryable: true}))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &Error{Code: ErrUpstreamError, Retryable: true})))
	assert.False(t, IsRetryable(&Error{Code: ErrUnauthorized}))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}
