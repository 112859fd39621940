package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitedToolAllowsBurstThenRejects(t *testing.T) {
	inner := &fakeTool{name: "limited"}
	// 1 call per minute with a burst of 2.
	rl := WithRateLimit(inner, 1, 2)

	for i := 0; i < 2; i++ {
		result, err := rl.Execute(context.Background(), json.RawMessage(`{}`))
		require.NoError(t, err)
		assert.False(t, result.IsError, "call %d should pass", i)
	}

	result, err := rl.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "rate limit exceeded")
}

func TestRateLimitedToolDelegatesMetadata(t *testing.T) {
	inner := &fakeTool{name: "limited"}
	rl := WithRateLimit(inner, 60, 1)

	assert.Equal(t, "limited", rl.Name())
	assert.Equal(t, inner.Description(), rl.Description())
	assert.Equal(t, inner.Schema().Name, rl.Schema().Name)
}
