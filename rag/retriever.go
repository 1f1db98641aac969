package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/docqa/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// QueryEmbedder 将查询文本转换为向量
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// SearchRecorder 记录单路检索指标
type SearchRecorder interface {
	RecordSearch(method, status string, results int, duration time.Duration)
}

// RetrieverConfig 混合检索配置
type RetrieverConfig struct {
	TopKPerMethod int
	TopNFused     int
	FusionWeight  float64
}

// DefaultRetrieverConfig 返回默认配置
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopKPerMethod: 8,
		TopNFused:     5,
		FusionWeight:  DefaultFusionWeight,
	}
}

// HybridRetriever 混合检索器：固定一个快照，并发执行词法与向量检索后融合。
type HybridRetriever struct {
	holder   *IndexHolder
	lexical  Searcher
	vector   Searcher
	embedder QueryEmbedder
	config   RetrieverConfig
	metrics  SearchRecorder
	logger   *zap.Logger
}

// NewHybridRetriever creates a retriever over holder. embedder may be nil,
// in which case only the lexical side contributes. metrics may be nil.
func NewHybridRetriever(holder *IndexHolder, embedder QueryEmbedder, config RetrieverConfig, metrics SearchRecorder, logger *zap.Logger) *HybridRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridRetriever{
		holder:   holder,
		lexical:  NewLexicalAdapter(),
		vector:   NewVectorAdapter(),
		embedder: embedder,
		config:   config,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "hybrid_retriever")),
	}
}

// WithSearchers replaces the adapters. Used by tests to inject failures.
func (r *HybridRetriever) WithSearchers(lexical, vector Searcher) *HybridRetriever {
	r.lexical = lexical
	r.vector = vector
	return r
}

// Retrieve runs both adapters against one pinned snapshot and fuses the
// results. Both sides empty yields an empty result, not an error.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string) (FusedResult, error) {
	ctx, span := otel.Tracer("docqa/rag").Start(ctx, "rag.retrieve")
	defer span.End()

	snap := r.holder.Current()
	if snap == nil {
		err := types.NewIndexUnavailableError("index not loaded")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("index.version", snap.Version),
		attribute.Int("index.passages", snap.Len()),
	)
	if snap.Len() == 0 {
		return FusedResult{}, nil
	}

	var lexical, vector []Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexical, err = r.search(gctx, r.lexical, snap, Query{Text: query})
		return err
	})
	g.Go(func() error {
		if r.embedder == nil || snap.Vector == nil || snap.Vector.Len() == 0 {
			return nil
		}
		start := time.Now()
		emb, err := r.embedder.EmbedQuery(gctx, query)
		if err != nil {
			r.record(MethodVector, "error", 0, time.Since(start))
			return indexError(gctx, "query embedding failed", err)
		}
		vector, err = r.search(gctx, r.vector, snap, Query{Text: query, Embedding: emb})
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	fused := Fuse(lexical, vector, r.config.FusionWeight, r.config.TopNFused)
	span.SetAttributes(
		attribute.Int("retrieval.lexical", len(lexical)),
		attribute.Int("retrieval.vector", len(vector)),
		attribute.Int("retrieval.fused", len(fused)),
	)
	r.logger.Debug("retrieval complete",
		zap.Int("lexical", len(lexical)),
		zap.Int("vector", len(vector)),
		zap.Int("fused", len(fused)),
		zap.String("index_version", snap.Version),
	)
	return fused, nil
}

func (r *HybridRetriever) search(ctx context.Context, s Searcher, snap *Snapshot, q Query) ([]Candidate, error) {
	start := time.Now()
	cands, err := s.Search(ctx, snap, q, r.config.TopKPerMethod)
	if err != nil {
		r.record(s.Method(), "error", 0, time.Since(start))
		return nil, indexError(ctx, fmt.Sprintf("%s search failed", s.Method()), err)
	}
	r.record(s.Method(), "success", len(cands), time.Since(start))
	return cands, nil
}

func (r *HybridRetriever) record(m Method, status string, n int, d time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordSearch(string(m), status, n, d)
	}
}

// indexError keeps context errors and typed errors as they are and wraps
// everything else as IndexUnavailable.
func indexError(ctx context.Context, msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := types.AsError(err); ok {
		return err
	}
	return types.NewIndexUnavailableError(msg).WithCause(err)
}
