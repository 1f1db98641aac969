package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/docqa/api"
	"github.com/BaSui01/docqa/rag"
	"github.com/BaSui01/docqa/testutil"
	"github.com/BaSui01/docqa/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockHealthCheck 模拟健康检查
type mockHealthCheck struct {
	name string
	err  error
}

func (m *mockHealthCheck) Name() string {
	return m.name
}

func (m *mockHealthCheck) Check(ctx context.Context) error {
	return m.err
}

func loadedHolder() *rag.IndexHolder {
	holder := rag.NewIndexHolder()
	holder.Swap(fixtures.ContractSnapshot())
	return holder
}

func getHealth(t *testing.T, h *HealthHandler) (int, api.HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp api.HealthResponse
	testutil.DecodeJSON(t, w.Body, &resp)
	return w.Code, resp
}

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_Healthy(t *testing.T) {
	h := NewHealthHandler(loadedHolder(), true, zap.NewNop())

	code, resp := getHealth(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.IndexLoaded)
	assert.True(t, resp.LexicalLoaded)
	assert.True(t, resp.VectorLoaded)
	assert.True(t, resp.LLMLoaded)
	assert.Equal(t, 4, resp.Passages)
	assert.Equal(t, 4, resp.Vectors)
	assert.Equal(t, "fixture", resp.IndexVersion)
	assert.NotNil(t, resp.LoadedAt)
}

func TestHealthHandler_Degraded(t *testing.T) {
	tests := []struct {
		name      string
		holder    *rag.IndexHolder
		llmLoaded bool
	}{
		{name: "index not loaded", holder: rag.NewIndexHolder(), llmLoaded: true},
		{name: "no generation provider", holder: loadedHolder(), llmLoaded: false},
		{
			name: "no vectors",
			holder: func() *rag.IndexHolder {
				h := rag.NewIndexHolder()
				h.Swap(rag.NewSnapshot("v", []*rag.Passage{{ID: "a", Page: 1, Content: "alpha"}}, rag.DefaultBM25K1, rag.DefaultBM25B))
				return h
			}(),
			llmLoaded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := getHealth(t, NewHealthHandler(tt.holder, tt.llmLoaded, zap.NewNop()))
			assert.Equal(t, http.StatusServiceUnavailable, code)
			assert.Equal(t, "degraded", resp.Status)
		})
	}
}

func TestHealthHandler_HealthHasNoSideEffects(t *testing.T) {
	holder := loadedHolder()
	before := holder.Current()
	h := NewHealthHandler(holder, true, zap.NewNop())

	for i := 0; i < 3; i++ {
		getHealth(t, h)
	}
	assert.Same(t, before, holder.Current())
}

func TestHealthHandler_HandleHealthz(t *testing.T) {
	h := NewHealthHandler(rag.NewIndexHolder(), false, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code, "liveness ignores component state")
}

func TestHealthHandler_HandleReady(t *testing.T) {
	t.Run("all pass", func(t *testing.T) {
		h := NewHealthHandler(loadedHolder(), true, zap.NewNop())
		h.RegisterCheck(NewIndexCheck(loadedHolder()))
		h.RegisterCheck(&mockHealthCheck{name: "redis"})

		w := httptest.NewRecorder()
		h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var status ReadinessStatus
		testutil.DecodeJSON(t, w.Body, &status)
		assert.Equal(t, "ready", status.Status)
		assert.Equal(t, "pass", status.Checks["index"].Status)
		assert.Equal(t, "pass", status.Checks["redis"].Status)
	})

	t.Run("one fails", func(t *testing.T) {
		h := NewHealthHandler(rag.NewIndexHolder(), true, zap.NewNop())
		h.RegisterCheck(NewIndexCheck(rag.NewIndexHolder()))
		h.RegisterCheck(NewFuncCheck("llm", func(context.Context) error { return errors.New("unreachable") }))

		w := httptest.NewRecorder()
		h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var status ReadinessStatus
		testutil.DecodeJSON(t, w.Body, &status)
		assert.Equal(t, "not_ready", status.Status)
		assert.Equal(t, "fail", status.Checks["index"].Status)
		assert.Equal(t, ErrIndexNotLoaded.Error(), status.Checks["index"].Message)
		assert.Equal(t, "unreachable", status.Checks["llm"].Message)
	})
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	h := NewHealthHandler(nil, false, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleVersion("v1.0.0", "2026-01-01", "abc123")(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v1.0.0", data["version"])
	assert.Equal(t, "abc123", data["git_commit"])
}

func TestHealthHandler_HandleRoot(t *testing.T) {
	h := NewHealthHandler(nil, false, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleRoot("v1.0.0")(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var info api.ServiceInfo
	testutil.DecodeJSON(t, w.Body, &info)
	assert.Equal(t, "docqa", info.Service)
	assert.Equal(t, "POST /query", info.Endpoints["query"])
}
