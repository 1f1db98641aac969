package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/docqa/internal/ctxkeys"
	"github.com/BaSui01/docqa/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"k":"v"}`, w.Body.String())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrIndexUnavailable, http.StatusServiceUnavailable},
		{types.ErrGenerationUnavailable, http.StatusServiceUnavailable},
		{types.ErrSynthesisUnavailable, http.StatusServiceUnavailable},
		{types.ErrTimeout, http.StatusGatewayTimeout},
		{types.ErrInternalError, http.StatusInternalServerError},
		{types.ErrCacheFault, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.code), string(tt.code))
	}
}

func TestWriteError_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	r = r.WithContext(ctxkeys.WithRequestID(r.Context(), "req-42"))

	WriteError(w, r, types.NewTimeoutError("request exceeded 60s"), zap.NewNop())

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TIMEOUT", resp.Error.Code)
	assert.Equal(t, "request exceeded 60s", resp.Error.Message)
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestWriteError_ExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(w, r, types.NewInvalidRequestError("bad").WithHTTPStatus(http.StatusRequestEntityTooLarge), nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestWriteErrorFrom_UntypedIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "from-header")

	WriteErrorFrom(w, r, errors.New("disk on fire"), zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "disk on fire")
	assert.Equal(t, "from-header", resp.RequestID)
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Question string `json:"question"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"question":"q"}`},
		{name: "malformed", body: `{"question":`, wantErr: true},
		{name: "unknown field ignored", body: `{"question":"q","extra":1}`},
		{name: "empty", body: "", wantErr: true},
		{name: "too large", body: `{"question":"` + strings.Repeat("a", maxBodyBytes) + `"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			var r *http.Request
			if tt.body == "" {
				r = httptest.NewRequest(http.MethodPost, "/query", http.NoBody)
			} else {
				r = httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(tt.body))
			}

			var dst payload
			err := DecodeJSONBody(w, r, &dst, zap.NewNop())

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "q", dst.Question)
				return
			}
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestResponseWriter_CapturesStatusAndSize(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	n, err := rw.Write([]byte("hello"))

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, int64(5), rw.Bytes)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, rec, rw.Unwrap())
}
