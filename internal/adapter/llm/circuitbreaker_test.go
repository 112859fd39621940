package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-ai/internal/domain"
)

func TestCircuitBreakerPassesThrough(t *testing.T) {
	inner := &stubProvider{name: "a", resp: &domain.ChatResponse{Message: domain.Message{Content: "ok"}}}
	p := NewCircuitBreakerProvider(inner, CircuitBreakerConfig{}, testLogger())

	resp, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	assert.Equal(t, "a", p.Name())
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubProvider{name: "a", err: errors.New("boom")}
	p := NewCircuitBreakerProvider(inner, CircuitBreakerConfig{MaxFailures: 3, Timeout: time.Minute}, testLogger())

	for i := 0; i < 3; i++ {
		_, err := p.Chat(context.Background(), domain.ChatRequest{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	// Once open, calls fail fast without touching the provider.
	calls := inner.calls
	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), `provider "a" circuit open`)
	assert.Equal(t, calls, inner.calls)
}

func TestCircuitBreakerResetsOnSuccess(t *testing.T) {
	inner := &stubProvider{name: "a", err: errors.New("boom")}
	p := NewCircuitBreakerProvider(inner, CircuitBreakerConfig{MaxFailures: 3}, testLogger())

	_, _ = p.Chat(context.Background(), domain.ChatRequest{})
	_, _ = p.Chat(context.Background(), domain.ChatRequest{})

	inner.err = nil
	inner.resp = &domain.ChatResponse{}
	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)

	assert.Equal(t, gobreaker.StateClosed, p.State())
	assert.Zero(t, p.Counts().ConsecutiveFailures)
}
