package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/docqa/api"
	"github.com/BaSui01/docqa/rag"
	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// IndexStatusProvider 提供索引状态，由 rag.IndexHolder 实现
type IndexStatusProvider interface {
	Status() rag.Status
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	index     IndexStatusProvider
	llmLoaded bool
	logger    *zap.Logger
	checks    []HealthCheck
	mu        sync.RWMutex
}

// ReadinessStatus /ready 响应
type ReadinessStatus struct {
	Status    string                 `json:"status"` // "ready", "not_ready"
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器。llmLoaded 表示生成服务是否已配置。
func NewHealthHandler(index IndexStatusProvider, llmLoaded bool, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		index:     index,
		llmLoaded: llmLoaded,
		logger:    logger.With(zap.String("handler", "health")),
	}
}

// RegisterCheck 注册就绪检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// Health 计算当前组件状态，无副作用
func (h *HealthHandler) Health() api.HealthResponse {
	var st rag.Status
	if h.index != nil {
		st = h.index.Status()
	}
	resp := api.HealthResponse{
		Status:        "healthy",
		IndexLoaded:   st.IndexLoaded,
		LexicalLoaded: st.LexicalLoaded,
		VectorLoaded:  st.VectorLoaded,
		LLMLoaded:     h.llmLoaded,
		Passages:      st.Passages,
		Vectors:       st.Vectors,
		IndexVersion:  st.Version,
		Timestamp:     time.Now(),
	}
	if !st.LoadedAt.IsZero() {
		loadedAt := st.LoadedAt
		resp.LoadedAt = &loadedAt
	}
	if !(st.IndexLoaded && st.LexicalLoaded && st.VectorLoaded && h.llmLoaded) {
		resp.Status = "degraded"
	}
	return resp
}

// HandleHealth 处理 /health 请求
// @Summary 健康检查
// @Description 索引、词法、向量与生成组件状态
// @Tags 健康
// @Produce json
// @Success 200 {object} api.HealthResponse "全部组件可用"
// @Failure 503 {object} api.HealthResponse "部分组件不可用"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := h.Health()
	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}

// HandleHealthz 处理 /healthz 请求（Kubernetes 风格）
// @Summary Kubernetes 活跃度探针
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "服务处于活动状态"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReady 处理 /ready 请求（就绪检查）
// @Summary 准备情况检查
// @Description 依次运行已注册的检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ReadinessStatus "服务已准备就绪"
// @Failure 503 {object} ReadinessStatus "服务尚未准备好"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := ReadinessStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	allReady := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{Status: "pass", Latency: latency.String()}
		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			allReady = false

			h.logger.Warn("readiness check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}
		status.Checks[check.Name()] = result
	}

	if !allReady {
		status.Status = "not_ready"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} Response "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

// HandleRoot 处理 / 请求，列出可用端点
// @Summary 服务横幅
// @Tags 健康
// @Produce json
// @Success 200 {object} api.ServiceInfo "服务信息"
// @Router / [get]
func (h *HealthHandler) HandleRoot(version string) http.HandlerFunc {
	info := api.ServiceInfo{
		Service: "docqa",
		Version: version,
		Endpoints: map[string]string{
			"query":   "POST /query",
			"health":  "GET /health",
			"healthz": "GET /healthz",
			"ready":   "GET /ready",
			"version": "GET /version",
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, info)
	}
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// FuncCheck 以函数实现的检查（Redis、生成服务等）
type FuncCheck struct {
	name  string
	check func(ctx context.Context) error
}

// NewFuncCheck 创建函数检查
func NewFuncCheck(name string, check func(ctx context.Context) error) *FuncCheck {
	return &FuncCheck{name: name, check: check}
}

func (c *FuncCheck) Name() string {
	return c.name
}

func (c *FuncCheck) Check(ctx context.Context) error {
	return c.check(ctx)
}

// ErrIndexNotLoaded 索引尚未加载
var ErrIndexNotLoaded = errors.New("index not loaded")

// IndexCheck 索引就绪检查
type IndexCheck struct {
	index IndexStatusProvider
}

// NewIndexCheck 创建索引检查
func NewIndexCheck(index IndexStatusProvider) *IndexCheck {
	return &IndexCheck{index: index}
}

func (c *IndexCheck) Name() string {
	return "index"
}

func (c *IndexCheck) Check(ctx context.Context) error {
	if !c.index.Status().IndexLoaded {
		return ErrIndexNotLoaded
	}
	return nil
}
