package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/api/handlers"
	"github.com/BaSui01/docqa/internal/ctxkeys"
	"github.com/BaSui01/docqa/internal/metrics"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	handler := Chain(okHandler(), SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(okHandler(), mark("a"), mark("b"), mark("c"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRequestID(t *testing.T) {
	var gotID, gotIP string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = ctxkeys.RequestID(r.Context())
		gotIP, _ = ctxkeys.ClientIP(r.Context())
	})
	handler := RequestID()(inner)

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.7:52311"
		handler.ServeHTTP(w, r)

		assert.Regexp(t, `^req-[0-9a-f-]{36}$`, gotID)
		assert.Equal(t, gotID, w.Header().Get("X-Request-ID"))
		assert.Equal(t, "10.0.0.7", gotIP)
	})

	t.Run("client supplied", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "trace-abc")
		handler.ServeHTTP(w, r)

		assert.Equal(t, "trace-abc", gotID)
		assert.Equal(t, "trace-abc", w.Header().Get("X-Request-ID"))
	})
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Chain(panicking, RequestID(), Recovery(zap.NewNop()))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	require.NotPanics(t, func() { handler.ServeHTTP(w, r) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp handlers.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Equal(t, w.Header().Get("X-Request-ID"), resp.RequestID)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler())

	do := func(addr string) int {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/query", nil)
		r.RemoteAddr = addr
		handler.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("192.0.2.1:1000"))
	assert.Equal(t, http.StatusOK, do("192.0.2.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("192.0.2.1:1002"))

	// 其它客户端不受影响
	assert.Equal(t, http.StatusOK, do("192.0.2.2:1000"))
}

func TestClientLimiters_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newClientLimiters(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("192.0.2.1"))
	assert.False(t, l.allow("192.0.2.1"))

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("192.0.2.2"))

	// 192.0.2.1 空闲 4 分钟，192.0.2.2 空闲 2 分钟
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, l.sweep())
	assert.Len(t, l.visitors, 1)

	// 回收后重新获得完整令牌桶
	assert.True(t, l.allow("192.0.2.1"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	handler := RateLimiter(context.Background(), 0, 0, zap.NewNop())(okHandler())

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantStatus  int
		wantAllowed string
	}{
		{"wildcard", []string{"*"}, "https://app.example", http.MethodPost, http.StatusOK, "*"},
		{"listed origin", []string{"https://app.example"}, "https://app.example", http.MethodPost, http.StatusOK, "https://app.example"},
		{"unlisted origin", []string{"https://app.example"}, "https://evil.example", http.MethodPost, http.StatusOK, ""},
		{"empty list", nil, "https://app.example", http.MethodPost, http.StatusOK, ""},
		{"preflight allowed", []string{"*"}, "https://app.example", http.MethodOptions, http.StatusNoContent, "*"},
		{"preflight rejected", nil, "https://app.example", http.MethodOptions, http.StatusForbidden, ""},
		{"same origin", nil, "", http.MethodGet, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.allowed)(okHandler())

			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, "/query", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				r.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowed, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	collector := metrics.NewCollector("docqa_cmd_test", zap.NewNop())
	handler := MetricsMiddleware(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	count, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "docqa_cmd_test_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/", "/"},
		{"/query", "/query"},
		{"/health", "/health"},
		{"/files/12345", "/files/:id"},
		{"/files/550e8400-e29b-41d4-a716-446655440000/pages", "/files/:id/pages"},
		{"/unknown/path", "/unknown/path"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}
