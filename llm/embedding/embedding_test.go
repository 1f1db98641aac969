package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/docqa/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteEmbedder_EmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"warranty period"}, req.Input)
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, 4, req.Dimensions)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3,0.4]}],"model":"text-embedding-3-small"}`))
	}))
	t.Cleanup(server.Close)

	e := NewRemoteEmbedder(RemoteConfig{APIKey: "sk-test", BaseURL: server.URL + "/", Dimensions: 4})
	assert.Equal(t, "openai-embedding", e.Name())
	assert.Equal(t, 4, e.Dimensions())

	vec, err := e.EmbedQuery(context.Background(), "warranty period")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, vec)
}

func TestRemoteEmbedder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		dims    int
		wantErr error
	}{
		{name: "empty data", status: http.StatusOK, body: `{"data":[]}`},
		{name: "dimension mismatch", status: http.StatusOK, body: `{"data":[{"index":0,"embedding":[1,2]}]}`, dims: 3, wantErr: ErrDimensionMismatch},
		{name: "malformed body", status: http.StatusOK, body: `{"data":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(server.Close)

			e := NewRemoteEmbedder(RemoteConfig{BaseURL: server.URL, Dimensions: tt.dims})
			_, err := e.EmbedQuery(context.Background(), "q")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRemoteEmbedder_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	t.Cleanup(server.Close)

	e := NewRemoteEmbedder(RemoteConfig{BaseURL: server.URL})
	_, err := e.EmbedQuery(context.Background(), "q")

	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrRateLimited, llmErr.Code)
	assert.Equal(t, "rate limited", llmErr.Message)
}

func TestRemoteEmbedder_Defaults(t *testing.T) {
	e := NewRemoteEmbedder(RemoteConfig{})
	assert.Equal(t, defaultEmbeddingBaseURL, e.cfg.BaseURL)
	assert.Equal(t, defaultEmbeddingModel, e.cfg.Model)
	assert.Equal(t, 30*time.Second, e.client.Timeout)
}

func TestRemoteEmbedder_ServerDown(t *testing.T) {
	e := NewRemoteEmbedder(RemoteConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := e.EmbedQuery(context.Background(), "q")

	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrUpstreamError, llmErr.Code)
}

func TestRemoteEmbedder_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewRemoteEmbedder(RemoteConfig{BaseURL: server.URL})
	_, err := e.EmbedQuery(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

// --- HashEmbedder ---

func TestHashEmbedder(t *testing.T) {
	_, err := NewHashEmbedder(0)
	require.Error(t, err)

	h, err := NewHashEmbedder(64)
	require.NoError(t, err)
	assert.Equal(t, "hash", h.Name())
	assert.Equal(t, 64, h.Dimensions())

	a, err := h.EmbedQuery(context.Background(), "Warranty period, two years")
	require.NoError(t, err)
	require.Len(t, a, 64)

	// 大小写与标点不影响结果
	b := h.Embed("warranty PERIOD two years!")
	assert.InDeltaSlice(t, a, b, 1e-12)

	var norm float64
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	empty := h.Embed("  ,, ")
	for _, v := range empty {
		assert.Zero(t, v)
	}
}

func TestHashEmbedder_ContextCanceled(t *testing.T) {
	h, _ := NewHashEmbedder(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.EmbedQuery(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}
