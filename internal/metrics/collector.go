package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

var (
	latencyBuckets    = []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30}
	generationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}
	searchBuckets     = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}
	sizeBuckets       = prometheus.ExponentialBuckets(100, 10, 8)
)

// Collector 汇总 HTTP、问答管线、生成、检索、缓存与索引的 Prometheus 指标。
// 指标注册在默认 registry 上，同一 namespace 只能创建一次。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpReqSize  *prometheus.HistogramVec
	httpRespSize *prometheus.HistogramVec

	queries      *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	stageLatency *prometheus.HistogramVec

	generations       *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	generationTokens  *prometheus.CounterVec

	searches      *prometheus.CounterVec
	searchLatency *prometheus.HistogramVec
	searchResults *prometheus.HistogramVec

	cacheEvents *prometheus.CounterVec

	indexReloads    *prometheus.CounterVec
	indexReloadTime prometheus.Histogram
	indexPassages   prometheus.Gauge
	indexVectors    prometheus.Gauge

	logger *zap.Logger
}

// family 在固定 namespace 下创建指标
type family struct {
	factory   promauto.Factory
	namespace string
}

func (f family) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return f.factory.NewCounterVec(prometheus.CounterOpts{Namespace: f.namespace, Name: name, Help: help}, labels)
}

func (f family) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return f.factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: f.namespace, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func (f family) gauge(name, help string) prometheus.Gauge {
	return f.factory.NewGauge(prometheus.GaugeOpts{Namespace: f.namespace, Name: name, Help: help})
}

// NewCollector 在默认 registry 上注册全部指标
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := family{factory: promauto.With(prometheus.DefaultRegisterer), namespace: namespace}

	c := &Collector{
		httpRequests: f.counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		httpLatency:  f.histogram("http_request_duration_seconds", "HTTP request duration in seconds", prometheus.DefBuckets, "method", "path"),
		httpReqSize:  f.histogram("http_request_size_bytes", "HTTP request size in bytes", sizeBuckets, "method", "path"),
		httpRespSize: f.histogram("http_response_size_bytes", "HTTP response size in bytes", sizeBuckets, "method", "path"),

		queries:      f.counter("queries_total", "Total number of answered questions", "status", "cached"),
		queryLatency: f.histogram("query_duration_seconds", "End-to-end question answering duration in seconds", latencyBuckets, "status"),
		stageLatency: f.histogram("stage_duration_seconds", "Pipeline stage duration in seconds", latencyBuckets, "stage", "status"),

		generations:       f.counter("generation_requests_total", "Total number of generation requests", "provider", "model", "status"),
		generationLatency: f.histogram("generation_request_duration_seconds", "Generation request duration in seconds", generationBuckets, "provider", "model"),
		generationTokens:  f.counter("generation_tokens_used_total", "Tokens used by generation, by type (prompt, completion)", "provider", "model", "type"),

		searches:      f.counter("search_requests_total", "Total number of retrieval searches", "method", "status"),
		searchLatency: f.histogram("search_duration_seconds", "Retrieval search duration in seconds", searchBuckets, "method"),
		searchResults: f.histogram("search_results", "Number of candidates returned per search", []float64{0, 1, 2, 4, 8, 16, 32}, "method"),

		cacheEvents: f.counter("cache_events_total", "Total number of response cache events", "tier", "event"),

		indexReloads:    f.counter("index_reloads_total", "Total number of index reloads", "status"),
		indexReloadTime: f.factory.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "index_reload_duration_seconds", Help: "Index reload duration in seconds"}),
		indexPassages:   f.gauge("index_passages", "Number of passages in the active index"),
		indexVectors:    f.gauge("index_vectors", "Number of passages with embeddings in the active index"),

		logger: logger.With(zap.String("component", "metrics")),
	}

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequests.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpLatency.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpReqSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpRespSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 💬 问答指标记录
// =============================================================================

// RecordQuery 记录一次完整问答
func (c *Collector) RecordQuery(status string, cached bool, duration time.Duration) {
	c.queries.WithLabelValues(status, strconv.FormatBool(cached)).Inc()
	c.queryLatency.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStage 记录管线阶段耗时
func (c *Collector) RecordStage(stage, status string, duration time.Duration) {
	c.stageLatency.WithLabelValues(stage, status).Observe(duration.Seconds())
}

// =============================================================================
// 🤖 生成指标记录
// =============================================================================

// RecordGeneration 记录生成请求
func (c *Collector) RecordGeneration(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.generations.WithLabelValues(provider, model, status).Inc()
	c.generationLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.generationTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.generationTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🔍 检索与索引指标记录
// =============================================================================

// RecordSearch 记录单路检索
func (c *Collector) RecordSearch(method, status string, results int, duration time.Duration) {
	c.searches.WithLabelValues(method, status).Inc()
	c.searchLatency.WithLabelValues(method).Observe(duration.Seconds())
	if status == "success" {
		c.searchResults.WithLabelValues(method).Observe(float64(results))
	}
}

// RecordIndexReload 记录索引重载，成功时更新段落与向量数
func (c *Collector) RecordIndexReload(status string, passages, vectors int, duration time.Duration) {
	c.indexReloads.WithLabelValues(status).Inc()
	c.indexReloadTime.Observe(duration.Seconds())
	if status == "success" {
		c.indexPassages.Set(float64(passages))
		c.indexVectors.Set(float64(vectors))
	}
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheEvent 记录缓存事件（hit/miss/store/evict/fault/coalesced）
func (c *Collector) RecordCacheEvent(tier, event string) {
	c.cacheEvents.WithLabelValues(tier, event).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
