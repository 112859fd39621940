package llm

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"ensemble-ai/internal/domain"
)

// GatewayOptions configures provider construction inside a Gateway.
type GatewayOptions struct {
	Client ClientOptions
	// Breaker, when non-nil, wraps every constructed provider in a circuit
	// breaker with these settings.
	Breaker *CircuitBreakerConfig
	// Fallbacks lists model descriptors tried in order when a resolved
	// provider's call fails. A model that is itself on this list resolves
	// without the failover wrap.
	Fallbacks []domain.ModelConfig
}

// Gateway resolves model descriptors into callable providers, constructing
// and caching one provider per distinct descriptor key. It implements
// domain.ModelGateway.
type Gateway struct {
	mu     sync.Mutex
	cache  map[string]domain.LLMProvider
	opts   GatewayOptions
	logger *slog.Logger
}

// NewGateway creates a provider gateway.
func NewGateway(opts GatewayOptions, logger *slog.Logger) *Gateway {
	return &Gateway{
		cache:  make(map[string]domain.LLMProvider),
		opts:   opts,
		logger: logger,
	}
}

// Resolve returns a provider for the descriptor, constructing it on first
// use. When the descriptor leaves Provider empty, the provider is detected
// from the model id.
func (g *Gateway) Resolve(model domain.ModelConfig) (domain.LLMProvider, error) {
	if model.Provider == "" {
		model.Provider = DetectProvider(model.Model)
	}

	key := model.Key()

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveLocked(model, key, !g.isFallback(key))
}

// resolveLocked does the cache-or-construct work. Callers hold g.mu.
func (g *Gateway) resolveLocked(model domain.ModelConfig, key string, withFallbacks bool) (domain.LLMProvider, error) {
	if p, ok := g.cache[key]; ok {
		return p, nil
	}

	p, err := g.build(model)
	if err != nil {
		return nil, err
	}

	if g.opts.Breaker != nil {
		p = NewCircuitBreakerProvider(p, *g.opts.Breaker, g.logger)
	}

	if withFallbacks {
		fallbacks, err := g.fallbackProviders(key)
		if err != nil {
			return nil, err
		}
		if len(fallbacks) > 0 {
			p = NewFailoverProvider(p, fallbacks, g.logger)
		}
	}

	g.cache[key] = p
	g.logger.Debug("provider constructed", "provider", model.Provider, "model", model.Model)
	return p, nil
}

// fallbackProviders constructs the configured fallback chain. Fallbacks are
// cached under their own keys without a failover wrap of their own, and the
// primary is excluded so a chain never contains itself.
func (g *Gateway) fallbackProviders(primaryKey string) ([]domain.LLMProvider, error) {
	var providers []domain.LLMProvider
	for _, fb := range g.opts.Fallbacks {
		if fb.Provider == "" {
			fb.Provider = DetectProvider(fb.Model)
		}
		key := fb.Key()
		if key == primaryKey {
			continue
		}
		p, err := g.resolveLocked(fb, key, false)
		if err != nil {
			return nil, domain.WrapOp("fallback "+fb.Model, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func (g *Gateway) isFallback(key string) bool {
	for _, fb := range g.opts.Fallbacks {
		if fb.Provider == "" {
			fb.Provider = DetectProvider(fb.Model)
		}
		if fb.Key() == key {
			return true
		}
	}
	return false
}

func (g *Gateway) build(model domain.ModelConfig) (domain.LLMProvider, error) {
	switch model.Provider {
	case domain.ProviderAnthropic:
		return NewAnthropicProvider(model, g.opts.Client, g.logger), nil
	case domain.ProviderOpenAI:
		return NewOpenAIProvider(model, g.opts.Client, g.logger), nil
	case domain.ProviderOllama:
		return NewOllamaProvider(model, g.opts.Client, g.logger), nil
	case domain.ProviderBedrock:
		return NewBedrockProvider(context.Background(), model, g.logger)
	default:
		return nil, domain.NewDomainError("Gateway.Resolve", domain.ErrProviderNotFound, model.Provider)
	}
}

// DetectProvider guesses the serving provider from a model id. Bedrock model
// ids carry a vendor prefix ("anthropic.claude-...", "amazon.titan-...");
// Anthropic and OpenAI ids have well-known families; everything else is
// assumed to be a local Ollama model.
func DetectProvider(modelID string) string {
	id := strings.ToLower(modelID)

	switch {
	case strings.Contains(id, "."):
		for _, vendor := range []string{"anthropic.", "amazon.", "meta.", "mistral.", "cohere.", "ai21."} {
			if strings.Contains(id, vendor) {
				return domain.ProviderBedrock
			}
		}
	}

	switch {
	case strings.HasPrefix(id, "claude"):
		return domain.ProviderAnthropic
	case strings.HasPrefix(id, "gpt"),
		strings.HasPrefix(id, "o1"),
		strings.HasPrefix(id, "o3"),
		strings.HasPrefix(id, "o4"),
		strings.HasPrefix(id, "chatgpt"),
		strings.HasPrefix(id, "text-embedding"):
		return domain.ProviderOpenAI
	default:
		return domain.ProviderOllama
	}
}

// Compile-time interface check.
var _ domain.ModelGateway = (*Gateway)(nil)
