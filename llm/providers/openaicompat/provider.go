// =============================================================================
// DocQA OpenAI-Compatible Provider
// =============================================================================
// Generation client for any service that speaks the OpenAI Chat Completions
// wire format (Groq, OpenAI, Ollama /v1, vLLM). Retryable upstream failures
// (429, 5xx, network) are retried a bounded number of times inside the
// caller's deadline.
// =============================================================================

package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/docqa/internal/tlsutil"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/llm/providers"
	"go.uber.org/zap"
)

const maxRetryAfter = 5 * time.Second

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName identifies the service in logs and metrics ("groq", "ollama").
	ProviderName string

	// APIKey is sent as a bearer token. Empty for unauthenticated local servers.
	APIKey string

	// BaseURL is the API root, e.g. "https://api.groq.com/openai".
	BaseURL string

	// DefaultModel is used when the request names no model.
	DefaultModel string

	// Timeout bounds a single HTTP attempt. Defaults to 30s.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a retryable failure.
	MaxRetries int

	// RetryBackoff is the first retry delay, doubled per attempt. Defaults to 250ms.
	RetryBackoff time.Duration

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string

	// ModelsEndpoint is requested by HealthCheck. Defaults to "/v1/models".
	ModelsEndpoint string

	// BuildHeaders overrides the default bearer/JSON headers.
	BuildHeaders func(req *http.Request, apiKey string)
}

// Provider is the OpenAI-compatible generation client.
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a provider, filling config defaults.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: tlsutil.SecureHTTPClient(cfg.Timeout),
		Logger: logger.With(zap.String("component", "openaicompat"), zap.String("provider", cfg.ProviderName)),
		sleep:  sleepContext,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.Cfg.ProviderName }

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	if p.Cfg.BuildHeaders != nil {
		p.Cfg.BuildHeaders(req, apiKey)
		return
	}
	providers.BearerTokenHeaders(req, apiKey)
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.Cfg.BaseURL, "/") + path
}

// HealthCheck lists models as a reachability and credential check.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.Cfg.ModelsEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	p.buildHeaders(httpReq, p.Cfg.APIKey)

	resp, err := p.Client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.Name())
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Completion performs a non-streaming chat completion. req.Timeout, when
// set, bounds all attempts together.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	model := providers.ChooseModel(req, p.Cfg.DefaultModel, "")
	if model == "" {
		return nil, &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    "no model configured",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}

	payload, err := json.Marshal(providers.NewChatCompletionRequest(model, req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	backoff := p.Cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		resp, retryAfter, err := p.attempt(ctx, payload)
		if err == nil {
			return resp, nil
		}

		if attempt >= p.Cfg.MaxRetries || !llm.IsRetryable(err) {
			return nil, err
		}

		wait := backoff
		if retryAfter > 0 {
			wait = retryAfter
		}
		p.Logger.Debug("retrying completion",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if serr := p.sleep(ctx, wait); serr != nil {
			return nil, fmt.Errorf("%s completion: %w", p.Name(), serr)
		}
		backoff *= 2
	}
}

// attempt sends one request. retryAfter is the server's Retry-After hint.
func (p *Provider) attempt(ctx context.Context, payload []byte) (*llm.ChatResponse, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.Cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	p.buildHeaders(httpReq, p.Cfg.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("%s completion: %w", p.Name(), ctx.Err())
		}
		return nil, 0, providers.UpstreamError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, retryAfter(resp.Header.Get("Retry-After")), providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var completion providers.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("%s completion: %w", p.Name(), ctx.Err())
		}
		return nil, 0, providers.UpstreamError(fmt.Errorf("decode response: %w", err), p.Name())
	}
	return completion.ToChatResponse(p.Name()), 0, nil
}

// retryAfter parses a delay-seconds Retry-After header, capped.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
