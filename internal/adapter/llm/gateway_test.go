package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-ai/internal/domain"
)

func TestDetectProvider(t *testing.T) {
	cases := []struct {
		model string
		want  string
	}{
		{"claude-sonnet-4-5", domain.ProviderAnthropic},
		{"claude-haiku-4-5-20251001", domain.ProviderAnthropic},
		{"gpt-5-mini", domain.ProviderOpenAI},
		{"o3-mini", domain.ProviderOpenAI},
		{"chatgpt-4o-latest", domain.ProviderOpenAI},
		{"anthropic.claude-sonnet-4-5-v1:0", domain.ProviderBedrock},
		{"us.anthropic.claude-sonnet-4-5-v1:0", domain.ProviderBedrock},
		{"amazon.titan-text-express-v1", domain.ProviderBedrock},
		{"meta.llama3-70b-instruct-v1:0", domain.ProviderBedrock},
		{"llama3.2", domain.ProviderOllama},
		{"qwen2.5-coder", domain.ProviderOllama},
		{"mistral-nemo", domain.ProviderOllama},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectProvider(tc.model))
		})
	}
}

func TestGatewayResolveCachesProviders(t *testing.T) {
	g := NewGateway(GatewayOptions{}, testLogger())

	cfg := domain.ModelConfig{Provider: domain.ProviderOpenAI, Model: "gpt-5-mini"}
	a, err := g.Resolve(cfg)
	require.NoError(t, err)
	b, err := g.Resolve(cfg)
	require.NoError(t, err)
	assert.Same(t, a, b)

	// A different descriptor constructs a distinct provider.
	c, err := g.Resolve(cfg.WithModel("gpt-5"))
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestGatewayResolveAutoDetects(t *testing.T) {
	g := NewGateway(GatewayOptions{}, testLogger())

	p, err := g.Resolve(domain.ModelConfig{Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAnthropic, p.Name())
}

func TestGatewayResolveUnknownProvider(t *testing.T) {
	g := NewGateway(GatewayOptions{}, testLogger())

	_, err := g.Resolve(domain.ModelConfig{Provider: "carrier-pigeon", Model: "x"})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestGatewayWrapsWithBreaker(t *testing.T) {
	g := NewGateway(GatewayOptions{Breaker: &CircuitBreakerConfig{MaxFailures: 2}}, testLogger())

	p, err := g.Resolve(domain.ModelConfig{Provider: domain.ProviderOpenAI, Model: "gpt-5-mini"})
	require.NoError(t, err)
	_, ok := p.(*CircuitBreakerProvider)
	assert.True(t, ok)
}

func TestGatewayWrapsWithFailover(t *testing.T) {
	g := NewGateway(GatewayOptions{
		Fallbacks: []domain.ModelConfig{
			{Provider: domain.ProviderOpenAI, Model: "gpt-5-mini"},
			{Provider: domain.ProviderOllama, Model: "llama3.2"},
		},
	}, testLogger())

	p, err := g.Resolve(domain.ModelConfig{Provider: domain.ProviderAnthropic, Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	fo, ok := p.(*FailoverProvider)
	require.True(t, ok)
	assert.Equal(t, "anthropic+failover", fo.Name())
	assert.Len(t, fo.fallbacks, 2)
}

func TestGatewayFallbackModelResolvesUnwrapped(t *testing.T) {
	g := NewGateway(GatewayOptions{
		Fallbacks: []domain.ModelConfig{
			{Provider: domain.ProviderOpenAI, Model: "gpt-5-mini"},
		},
	}, testLogger())

	// The fallback itself must not get a failover wrap, or a chain could
	// recurse into itself.
	p, err := g.Resolve(domain.ModelConfig{Provider: domain.ProviderOpenAI, Model: "gpt-5-mini"})
	require.NoError(t, err)
	_, ok := p.(*FailoverProvider)
	assert.False(t, ok)
}

func TestGatewayFailoverSharesFallbackProviders(t *testing.T) {
	g := NewGateway(GatewayOptions{
		Fallbacks: []domain.ModelConfig{
			{Model: "llama3.2"}, // provider detected
		},
	}, testLogger())

	primary, err := g.Resolve(domain.ModelConfig{Provider: domain.ProviderAnthropic, Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	fo, ok := primary.(*FailoverProvider)
	require.True(t, ok)

	direct, err := g.Resolve(domain.ModelConfig{Provider: domain.ProviderOllama, Model: "llama3.2"})
	require.NoError(t, err)
	assert.Same(t, direct, fo.fallbacks[0])
}
