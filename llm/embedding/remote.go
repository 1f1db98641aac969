package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/docqa/internal/tlsutil"
	"github.com/BaSui01/docqa/llm/providers"
)

const (
	defaultEmbeddingBaseURL = "https://api.openai.com"
	defaultEmbeddingModel   = "text-embedding-3-small"
	embeddingsPath          = "/v1/embeddings"
)

// RemoteConfig 配置 OpenAI 兼容的 /v1/embeddings 客户端
type RemoteConfig struct {
	Name       string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// RemoteEmbedder 调用 OpenAI 兼容接口向量化查询。
// 配置了 Dimensions 时会随请求下发，并校验返回向量长度。
type RemoteEmbedder struct {
	cfg    RemoteConfig
	client *http.Client
}

// NewRemoteEmbedder 创建远程向量化器，缺省值见包内常量
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	if cfg.Name == "" {
		cfg.Name = "openai-embedding"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEmbeddingBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RemoteEmbedder{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
	}
}

func (e *RemoteEmbedder) Name() string    { return e.cfg.Name }
func (e *RemoteEmbedder) Dimensions() int { return e.cfg.Dimensions }

type embedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// EmbedQuery 向量化单个查询。上游错误映射为 *llm.Error。
func (e *RemoteEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{
		Input:      []string{query},
		Model:      e.cfg.Model,
		Dimensions: e.cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+embeddingsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	providers.BearerTokenHeaders(req, e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s request: %w", e.cfg.Name, ctx.Err())
		}
		return nil, providers.UpstreamError(err, e.cfg.Name)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), e.cfg.Name)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	for _, d := range decoded.Data {
		if d.Index != 0 || len(d.Embedding) == 0 {
			continue
		}
		if e.cfg.Dimensions > 0 && len(d.Embedding) != e.cfg.Dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), e.cfg.Dimensions)
		}
		return d.Embedding, nil
	}
	return nil, fmt.Errorf("%s returned no embedding", e.cfg.Name)
}
