package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/api/handlers"
	"github.com/BaSui01/docqa/config"
	rediscache "github.com/BaSui01/docqa/internal/cache"
	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/internal/server"
	"github.com/BaSui01/docqa/internal/telemetry"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/llm/cache"
	"github.com/BaSui01/docqa/llm/embedding"
	"github.com/BaSui01/docqa/llm/providers/openaicompat"
	"github.com/BaSui01/docqa/llm/tokenizer"
	"github.com/BaSui01/docqa/qa"
	"github.com/BaSui01/docqa/rag"
)

// =============================================================================
// 🧩 问答管线
// =============================================================================

// pipeline 持有问答链路上的全部组件，serve 与 ask 共用。
type pipeline struct {
	holder        *rag.IndexHolder
	loader        *rag.Loader
	watcher       *rag.Watcher
	provider      llm.Provider
	redis         *rediscache.Store
	responseCache *cache.ResponseCache
	orchestrator  *qa.Orchestrator
	logger        *zap.Logger
}

// buildPipeline 按配置组装检索、缓存与生成组件，并完成首次索引加载。
// 索引或 Redis 不可用时服务以降级模式继续运行。
func buildPipeline(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*pipeline, error) {
	p := &pipeline{logger: logger}

	// 1. 生成服务（未配置时为 nil，问答返回 GENERATION_UNAVAILABLE）
	if cfg.LLM.Configured() {
		inner := openaicompat.New(openaicompat.Config{
			ProviderName: cfg.LLM.Provider,
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.LLM.Model,
			Timeout:      cfg.LLM.Timeout,
			MaxRetries:   cfg.LLM.MaxRetries,
		}, logger)
		p.provider = llm.NewInstrumentedProvider(inner, collector, logger)
		logger.Info("Generation provider initialized",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model))
	} else {
		logger.Warn("LLM not configured, answers are unavailable until llm.api_key is set",
			zap.String("provider", cfg.LLM.Provider))
	}

	// 2. 查询向量化
	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	// 3. 索引快照与加载器
	p.holder = rag.NewIndexHolder()
	store := rag.NewStore(cfg.Index.Location, logger)
	p.loader = rag.NewLoader(store, p.holder, cfg.Retrieval.BM25K1, cfg.Retrieval.BM25B, collector, logger)

	// 4. 响应缓存（可选 Redis 二级）
	var remote cache.RemoteStore
	if cfg.Cache.Redis.Enabled {
		rs, err := rediscache.NewStore(rediscache.Config{
			Addr:         cfg.Cache.Redis.Addr,
			Password:     cfg.Cache.Redis.Password,
			DB:           cfg.Cache.Redis.DB,
			DefaultTTL:   cfg.Cache.TTL,
			MaxRetries:   1,
			PoolSize:     cfg.Cache.Redis.PoolSize,
			MinIdleConns: cfg.Cache.Redis.MinIdleConns,
			TLSEnabled:   cfg.Cache.Redis.TLS,
			DialTimeout:  2 * time.Second,
		}, logger)
		if err != nil {
			logger.Warn("Redis not available, using local cache only",
				zap.String("addr", cfg.Cache.Redis.Addr), zap.Error(err))
		} else {
			p.redis = rs
			remote = rs
		}
	}

	p.responseCache = cache.NewResponseCache(cache.Config{
		Capacity:        cfg.Cache.Capacity,
		TTL:             cfg.Cache.TTL,
		ComputeTimeout:  cfg.Query.RequestTimeout,
		RemotePrefix:    cfg.Cache.Redis.KeyPrefix,
		RemoteOpTimeout: cfg.Cache.Redis.OpTimeout,
	}, remote, collector, logger)

	// 索引变化后旧答案可能引用已不存在的段落
	p.loader.OnReload(func(snap *rag.Snapshot) {
		purgeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n := p.responseCache.Purge(purgeCtx)
		logger.Info("Response cache purged after index reload",
			zap.String("index_version", snap.Version),
			zap.Int("entries", n))
	})

	if _, err := p.loader.Reload(ctx); err != nil {
		logger.Warn("Index not loaded, running degraded",
			zap.String("location", cfg.Index.Location), zap.Error(err))
	}

	// 5. 检索、改写、合成、编排
	retriever := rag.NewHybridRetriever(p.holder, embedder, rag.RetrieverConfig{
		TopKPerMethod: cfg.Retrieval.TopKPerMethod,
		TopNFused:     cfg.Retrieval.TopNFused,
		FusionWeight:  cfg.Retrieval.FusionWeight,
	}, collector, logger)

	rewriter := qa.NewHistoryRewriter(p.provider, qa.RewriterConfig{
		Enabled:     cfg.Conversation.RewriteEnabled,
		WindowSize:  cfg.Conversation.HistoryWindowSize,
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
		MaxTokens:   qa.DefaultRewriterConfig().MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		MaxLength:   cfg.Conversation.MaxRewriteLength,
	}, logger)

	synthesizer := qa.NewSynthesizer(p.provider, tokenizer.NewCounter(cfg.LLM.Model, logger), qa.SynthesizerConfig{
		Model:            cfg.LLM.Model,
		Temperature:      float32(cfg.LLM.Temperature),
		MaxTokens:        cfg.LLM.MaxTokens,
		Timeout:          cfg.LLM.Timeout,
		MaxSources:       cfg.Synthesis.MaxSources,
		ExcerptLength:    cfg.Synthesis.ExcerptLength,
		MaxContextTokens: cfg.Synthesis.MaxContextTokens,
		AppendPageFooter: cfg.Synthesis.AppendPageFooter,
	}, logger)

	p.orchestrator = qa.NewOrchestrator(rewriter, retriever, synthesizer, p.responseCache, qa.OrchestratorConfig{
		HistoryWindowSize: cfg.Conversation.HistoryWindowSize,
		MaxQuestionLength: cfg.Query.MaxQuestionLength,
		MaxHistoryTurns:   cfg.Query.MaxHistoryTurns,
		RequestTimeout:    cfg.Query.RequestTimeout,
	}, collector, logger)

	return p, nil
}

// watch 启动索引产物监听
func (p *pipeline) watch(ctx context.Context, debounce time.Duration) error {
	w, err := rag.NewWatcher(p.loader, debounce, p.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	p.watcher = w
	return nil
}

// Close 释放监听器与 Redis 连接
func (p *pipeline) Close() {
	if p.watcher != nil {
		if err := p.watcher.Stop(); err != nil {
			p.logger.Error("Index watcher shutdown error", zap.Error(err))
		}
	}
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			p.logger.Error("Redis shutdown error", zap.Error(err))
		}
	}
}

// newEmbedder 按配置创建查询向量化器
func newEmbedder(cfg config.EmbeddingConfig) (rag.QueryEmbedder, error) {
	switch cfg.Provider {
	case "openai":
		return embedding.NewRemoteEmbedder(embedding.RemoteConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}), nil
	case "hash", "":
		h, err := embedding.NewHashEmbedder(cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 DocQA 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// API 与 /metrics 监听
	servers *server.Group

	pipeline      *pipeline
	healthHandler *handlers.HealthHandler
	queryHandler  *handlers.QueryHandler

	// 指标收集器
	metricsCollector *metrics.Collector
	otelProviders    *telemetry.Providers

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务。ctx 取消后后台任务（索引监听、限流清理）随之退出。
func (s *Server) Start(ctx context.Context) error {
	// 1. 遥测
	otelProviders, err := telemetry.Init(s.cfg.Telemetry, Version, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		otelProviders = nil
	}
	s.otelProviders = otelProviders

	// 2. 指标收集器
	s.metricsCollector = metrics.NewCollector("docqa", s.logger)

	// 3. 问答管线
	p, err := buildPipeline(ctx, s.cfg, s.metricsCollector, s.logger)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	s.pipeline = p

	if s.cfg.Index.Watch {
		if err := p.watch(ctx, s.cfg.Index.WatchDebounce); err != nil {
			s.logger.Warn("Index watcher not started, hot reload disabled", zap.Error(err))
		}
	}

	// 4. Handlers
	s.initHandlers()

	// 5. HTTP 服务器
	s.servers = server.NewGroup(s.logger)
	if err := s.addHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to configure HTTP server: %w", err)
	}
	if err := s.addMetricsServer(); err != nil {
		return fmt.Errorf("failed to configure metrics server: %w", err)
	}
	if err := s.servers.Start(); err != nil {
		return fmt.Errorf("failed to start servers: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("index_watch", s.pipeline.watcher != nil),
		zap.Bool("redis_cache", s.pipeline.redis != nil),
	)

	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	p := s.pipeline

	s.healthHandler = handlers.NewHealthHandler(p.holder, p.provider != nil, s.logger)
	s.healthHandler.RegisterCheck(handlers.NewIndexCheck(p.holder))
	if p.redis != nil {
		s.healthHandler.RegisterCheck(handlers.NewFuncCheck("redis", p.redis.Ping))
	}
	if p.provider != nil {
		s.healthHandler.RegisterCheck(llmCheck(p.provider))
	}

	s.queryHandler = handlers.NewQueryHandler(p.orchestrator, s.logger)

	s.logger.Info("Handlers initialized")
}

// llmCheck 以生成服务的探活结果作为就绪检查
func llmCheck(provider llm.Provider) handlers.HealthCheck {
	return handlers.NewFuncCheck("llm", func(ctx context.Context) error {
		status, err := provider.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if !status.Healthy {
			return errors.New("llm provider unhealthy")
		}
		return nil
	})
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// addHTTPServer 注册 API 监听
func (s *Server) addHTTPServer(ctx context.Context) error {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.HandleFunc("GET /{$}", s.healthHandler.HandleRoot(Version))

	// 问答
	mux.HandleFunc("POST /query", s.queryHandler.HandleQuery)

	// 未配置独立端口时 /metrics 挂在 API 上
	if s.cfg.Server.MetricsPort == 0 {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(ctx)
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	return s.servers.Add("api", handler, serverConfig)
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// addMetricsServer 注册独立的 Metrics 监听。端口为 0 时 /metrics 挂在 API 上。
func (s *Server) addMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		s.logger.Info("Metrics served on API port")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	return s.servers.Add("metrics", mux, serverConfig)
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait 阻塞直到 ctx 结束或任一监听异常退出
func (s *Server) Wait(ctx context.Context) error {
	if s.servers == nil {
		return nil
	}
	return s.servers.Wait(ctx)
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 API 与 Metrics 监听
	if s.servers != nil {
		if err := s.servers.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 索引监听与 Redis
	if s.pipeline != nil {
		s.pipeline.Close()
	}

	// 3. 刷新遥测
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
