package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BaSui01/docqa/llm/cache"
	"github.com/BaSui01/docqa/rag"
	"github.com/BaSui01/docqa/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// =============================================================================
// 🔌 依赖接口
// =============================================================================

// QueryRewriter 把追问改写为独立问题
type QueryRewriter interface {
	Rewrite(ctx context.Context, question string, history []types.ConversationTurn) string
}

// Retriever 混合检索
type Retriever interface {
	Retrieve(ctx context.Context, query string) (rag.FusedResult, error)
}

// AnswerSynthesizer 答案合成
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, query string, fused rag.FusedResult) (*Answer, error)
}

// AnswerCache 带单飞合并的答案缓存
type AnswerCache interface {
	Do(ctx context.Context, key string, compute cache.ComputeFunc) (*cache.Entry, bool, error)
}

// StageRecorder 记录阶段与整体请求指标
type StageRecorder interface {
	RecordStage(stage, status string, duration time.Duration)
	RecordQuery(status string, cached bool, duration time.Duration)
}

// =============================================================================
// 📋 请求与响应
// =============================================================================

// Request 一次问答请求
type Request struct {
	RequestID string
	Question  string
	History   []types.ConversationTurn
}

// Response 问答结果
type Response struct {
	Answer  string         `json:"answer"`
	Sources []types.Source `json:"sources"`
	Cached  bool           `json:"cached"`
}

// State 管线状态
type State string

const (
	StateValidating    State = "validating"
	StateRewriting     State = "rewriting"
	StateCacheCheck    State = "cache_check"
	StateRetrieving    State = "retrieving"
	StateSynthesizing  State = "synthesizing"
	StateCachePopulate State = "cache_populate"
	StateRespond       State = "respond"
	StateFailed        State = "failed"
)

// OrchestratorConfig 编排器配置
type OrchestratorConfig struct {
	HistoryWindowSize int
	MaxQuestionLength int
	MaxHistoryTurns   int
	RequestTimeout    time.Duration
}

// DefaultOrchestratorConfig 返回默认配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		HistoryWindowSize: 6,
		MaxQuestionLength: 2000,
		MaxHistoryTurns:   100,
		RequestTimeout:    60 * time.Second,
	}
}

// =============================================================================
// 🎯 编排器
// =============================================================================

// Orchestrator 驱动一次请求走完整个问答管线
type Orchestrator struct {
	rewriter    QueryRewriter
	retriever   Retriever
	synthesizer AnswerSynthesizer
	cache       AnswerCache
	config      OrchestratorConfig
	metrics     StageRecorder
	answers     metric.Int64Counter
	logger      *zap.Logger
}

// NewOrchestrator creates an orchestrator. metrics may be nil.
func NewOrchestrator(rewriter QueryRewriter, retriever Retriever, synthesizer AnswerSynthesizer, answerCache AnswerCache, config OrchestratorConfig, metrics StageRecorder, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	// OTLP 侧的请求计数，未启用遥测时为 noop
	answers, err := otel.Meter("docqa/qa").Int64Counter("docqa.qa.answers",
		metric.WithDescription("Answered queries by outcome"))
	if err != nil {
		logger.Warn("create answers counter failed", zap.Error(err))
	}
	return &Orchestrator{
		rewriter:    rewriter,
		retriever:   retriever,
		synthesizer: synthesizer,
		cache:       answerCache,
		config:      config,
		metrics:     metrics,
		answers:     answers,
		logger:      logger.With(zap.String("component", "orchestrator")),
	}
}

// Answer runs the pipeline for req. Errors are *types.Error values.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (resp *Response, err error) {
	start := time.Now()
	log := o.logger.With(zap.String("request_id", req.RequestID))

	ctx, span := otel.Tracer("docqa/qa").Start(ctx, "qa.answer")
	defer span.End()

	state := StateValidating
	log.Debug("state transition", zap.String("to", string(state)))
	defer func() {
		cached := resp != nil && resp.Cached
		if err != nil {
			o.transition(log, state, StateFailed, zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.recordQuery(string(types.GetErrorCode(err)), false, time.Since(start))
			return
		}
		span.SetAttributes(attribute.Bool("qa.cached", cached))
		o.recordQuery("success", cached, time.Since(start))
	}()

	if err := o.validate(req); err != nil {
		return nil, err
	}

	if o.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.RequestTimeout)
		defer cancel()
	}

	// 窗口只截取一次，改写与缓存键共用
	window := types.TrailingWindow(req.History, o.config.HistoryWindowSize)

	state = o.transition(log, state, StateRewriting)
	stageStart := time.Now()
	rewritten := o.rewriter.Rewrite(ctx, req.Question, window)
	o.recordStage("rewrite", "success", time.Since(stageStart))
	if err := ctx.Err(); err != nil {
		return nil, o.mapError(err)
	}

	state = o.transition(log, state, StateCacheCheck)
	key := cache.BuildKey(rewritten, window)
	span.SetAttributes(attribute.Int("qa.history_window", len(window)))

	entry, cached, err := o.cache.Do(ctx, key, func(fctx context.Context) (*cache.Entry, error) {
		return o.compute(fctx, log, rewritten)
	})
	if err != nil {
		return nil, o.mapError(err)
	}
	if cached {
		log.Debug("cache hit", zap.String("key", key))
	}

	state = o.transition(log, state, StateRespond, zap.Bool("cached", cached))
	return &Response{
		Answer:  entry.Answer,
		Sources: copySources(entry.Sources),
		Cached:  cached,
	}, nil
}

// compute is the cache-miss branch. It runs once per key however many
// requests are waiting on it.
func (o *Orchestrator) compute(ctx context.Context, log *zap.Logger, query string) (*cache.Entry, error) {
	o.transition(log, StateCacheCheck, StateRetrieving)
	stageStart := time.Now()
	fused, err := o.retriever.Retrieve(ctx, query)
	if err != nil {
		o.recordStage("retrieve", "error", time.Since(stageStart))
		return nil, err
	}
	o.recordStage("retrieve", "success", time.Since(stageStart))

	o.transition(log, StateRetrieving, StateSynthesizing, zap.Int("passages", len(fused)))
	stageStart = time.Now()
	answer, err := o.synthesizer.Synthesize(ctx, query, fused)
	if err != nil {
		o.recordStage("synthesize", "error", time.Since(stageStart))
		return nil, err
	}
	o.recordStage("synthesize", "success", time.Since(stageStart))

	o.transition(log, StateSynthesizing, StateCachePopulate)
	return &cache.Entry{
		Answer:    answer.Text,
		Sources:   answer.Sources,
		CreatedAt: time.Now(),
	}, nil
}

// validate rejects malformed input before any adapter runs.
func (o *Orchestrator) validate(req Request) error {
	if strings.TrimSpace(req.Question) == "" {
		return types.NewInvalidRequestError("question must not be empty")
	}
	if max := o.config.MaxQuestionLength; max > 0 && utf8.RuneCountInString(req.Question) > max {
		return types.NewInvalidRequestError(fmt.Sprintf("question exceeds %d characters", max))
	}
	if max := o.config.MaxHistoryTurns; max > 0 && len(req.History) > max {
		return types.NewInvalidRequestError(fmt.Sprintf("chat_history exceeds %d turns", max))
	}
	for i, turn := range req.History {
		if !turn.Valid() {
			return types.NewInvalidRequestError(
				fmt.Sprintf("chat_history[%d]: role must be user or assistant, got %q", i, turn.Role))
		}
	}
	return nil
}

// mapError turns pipeline failures into typed errors. Typed errors pass
// through; deadline expiry becomes TIMEOUT.
func (o *Orchestrator) mapError(err error) error {
	if te, ok := types.AsError(err); ok {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewTimeoutError(fmt.Sprintf("request exceeded %s", o.config.RequestTimeout)).WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return types.NewInternalError("request canceled").WithCause(err)
	}
	return types.NewInternalError("query failed").WithCause(err)
}

func (o *Orchestrator) transition(log *zap.Logger, from, to State, fields ...zap.Field) State {
	if ce := log.Check(zap.DebugLevel, "state transition"); ce != nil {
		ce.Write(append([]zap.Field{zap.String("from", string(from)), zap.String("to", string(to))}, fields...)...)
	}
	return to
}

func (o *Orchestrator) recordStage(stage, status string, d time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordStage(stage, status, d)
	}
}

func (o *Orchestrator) recordQuery(status string, cached bool, d time.Duration) {
	if o.answers != nil {
		o.answers.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("status", status),
			attribute.Bool("cached", cached),
		))
	}
	if o.metrics != nil {
		o.metrics.RecordQuery(status, cached, d)
	}
}

func copySources(in []types.Source) []types.Source {
	out := make([]types.Source, len(in))
	copy(out, in)
	return out
}
