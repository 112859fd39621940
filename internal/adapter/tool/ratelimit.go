package tool

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"

	"ensemble-ai/internal/domain"
)

// RateLimitedTool wraps a Tool with a token-bucket rate limiter. Calls
// beyond the limit fail immediately with an error ToolResult instead of
// blocking, so a chatty model cannot stall the loop on a saturated tool.
type RateLimitedTool struct {
	inner   domain.Tool
	limiter *rate.Limiter
}

// WithRateLimit wraps a tool to allow callsPerMinute sustained calls with
// the given burst.
func WithRateLimit(t domain.Tool, callsPerMinute float64, burst int) *RateLimitedTool {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedTool{
		inner:   t,
		limiter: rate.NewLimiter(rate.Limit(callsPerMinute)/60.0, burst),
	}
}

func (t *RateLimitedTool) Name() string              { return t.inner.Name() }
func (t *RateLimitedTool) Description() string       { return t.inner.Description() }
func (t *RateLimitedTool) Schema() domain.ToolSchema { return t.inner.Schema() }

func (t *RateLimitedTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	if !t.limiter.Allow() {
		return &domain.ToolResult{
			IsError: true,
			Content: "rate limit exceeded for tool " + t.inner.Name() + ", retry later",
		}, nil
	}
	return t.inner.Execute(ctx, params)
}
