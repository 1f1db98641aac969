package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MetricsRecorder 记录生成调用指标，由 internal/metrics.Collector 实现。
type MetricsRecorder interface {
	RecordGeneration(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// InstrumentedProvider 为 Provider 附加指标、追踪与日志。
type InstrumentedProvider struct {
	inner   Provider
	metrics MetricsRecorder
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewInstrumentedProvider 包装 Provider。metrics 可以为 nil。
func NewInstrumentedProvider(inner Provider, metrics MetricsRecorder, logger *zap.Logger) *InstrumentedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedProvider{
		inner:   inner,
		metrics: metrics,
		tracer:  otel.Tracer("docqa/llm"),
		logger:  logger.With(zap.String("component", "llm"), zap.String("provider", inner.Name())),
	}
}

func (p *InstrumentedProvider) Name() string { return p.inner.Name() }

func (p *InstrumentedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	ctx, span := p.tracer.Start(ctx, "llm.completion", trace.WithAttributes(
		attribute.String("llm.provider", p.inner.Name()),
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	))
	defer span.End()

	start := time.Now()
	resp, err := p.inner.Completion(ctx, req)
	duration := time.Since(start)

	status := "success"
	var promptTokens, completionTokens int
	if err != nil {
		status = errorStatus(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("completion failed",
			zap.String("model", req.Model),
			zap.Duration("duration", duration),
			zap.Error(err))
	} else {
		promptTokens = resp.Usage.PromptTokens
		completionTokens = resp.Usage.CompletionTokens
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", promptTokens),
			attribute.Int("llm.completion_tokens", completionTokens),
		)
		p.logger.Debug("completion finished",
			zap.String("model", req.Model),
			zap.Duration("duration", duration),
			zap.Int("total_tokens", resp.Usage.TotalTokens))
	}

	if p.metrics != nil {
		p.metrics.RecordGeneration(p.inner.Name(), req.Model, status, duration, promptTokens, completionTokens)
	}
	return resp, err
}

func (p *InstrumentedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

func errorStatus(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var le *Error
	if errors.As(err, &le) {
		return string(le.Code)
	}
	return "error"
}
