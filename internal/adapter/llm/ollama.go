package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ensemble-ai/internal/domain"
)

// Compile-time interface assertion.
var _ domain.LLMProvider = (*OllamaProvider)(nil)

// Default Ollama timeouts: short connect (local), long response (model loading).
const (
	ollamaDefaultConnTimeout = 5 * time.Second
	ollamaDefaultRespTimeout = 300 * time.Second
)

// OllamaProvider wraps OpenAIProvider to work with the Ollama API. Ollama
// exposes an OpenAI-compatible endpoint at /v1, so chat is delegated to the
// inner OpenAI provider. Ollama-specific features (model listing, health
// check, warmup) use the native API.
type OllamaProvider struct {
	inner   *OpenAIProvider
	baseURL string // native Ollama API base (without /v1)
	client  *http.Client
	logger  *slog.Logger
}

// OllamaModel describes a locally available Ollama model.
type OllamaModel struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// NewOllamaProvider creates an Ollama provider that delegates chat to the
// OpenAI adapter via Ollama's OpenAI-compatible /v1 endpoint.
func NewOllamaProvider(model domain.ModelConfig, opts ClientOptions, logger *slog.Logger) *OllamaProvider {
	if opts.ConnTimeout == 0 {
		opts.ConnTimeout = ollamaDefaultConnTimeout
	}
	if opts.RespTimeout == 0 {
		opts.RespTimeout = ollamaDefaultRespTimeout
	}

	client := NewHTTPClient(opts)

	baseURL := strings.TrimRight(model.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	innerModel := model
	innerModel.APIKey = "" // Ollama needs no API key
	innerModel.BaseURL = baseURL + "/v1"

	return &OllamaProvider{
		inner: &OpenAIProvider{
			name:    domain.ProviderOllama,
			model:   innerModel,
			baseURL: innerModel.BaseURL,
			client:  client,
			logger:  logger,
		},
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// Chat implements domain.LLMProvider.
func (p *OllamaProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return p.inner.Chat(ctx, req)
}

// Name implements domain.LLMProvider.
func (p *OllamaProvider) Name() string { return p.inner.Name() }

// ListModels returns the locally available Ollama models.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]OllamaModel, error) {
	url := p.baseURL + "/api/tags"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(body))
	}

	var resp struct {
		Models []OllamaModel `json:"models"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return resp.Models, nil
}

// IsHealthy checks if the Ollama server is reachable.
func (p *OllamaProvider) IsHealthy(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return false
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return false
	}
	httpResp.Body.Close()

	return httpResp.StatusCode == http.StatusOK
}

// Warmup sends a lightweight request to pre-load the configured model, so
// the first real request does not pay model load latency.
func (p *OllamaProvider) Warmup(ctx context.Context) error {
	if !p.IsHealthy(ctx) {
		return fmt.Errorf("ollama server not reachable at %s", p.baseURL)
	}

	p.logger.Info("warming up Ollama model", "model", p.inner.model.Model, "base_url", p.baseURL)

	// The generate endpoint with keep_alive loads the model without generating.
	payload := fmt.Sprintf(`{"model":%q,"keep_alive":"5m"}`, p.inner.model.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate",
		strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create warmup request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("warmup request: %w", err)
	}
	defer httpResp.Body.Close()
	io.Copy(io.Discard, httpResp.Body)

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("warmup failed: status %d", httpResp.StatusCode)
	}

	p.logger.Info("Ollama model warmed up", "model", p.inner.model.Model)
	return nil
}
