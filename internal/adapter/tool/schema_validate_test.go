package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-ai/internal/domain"
)

func TestWithSchemaValidation(t *testing.T) {
	inner := &fakeTool{
		name: "typed",
		params: map[string]domain.ParamSpec{
			"count": {Type: domain.ParamNumber, Required: true},
		},
	}

	wrapped, err := WithSchemaValidation(inner)
	require.NoError(t, err)
	assert.Equal(t, "typed", wrapped.Name())

	result, err := wrapped.Execute(context.Background(), json.RawMessage(`{"count":3}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = wrapped.Execute(context.Background(), json.RawMessage(`{"count":"three"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "schema validation failed")

	result, err = wrapped.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestWithSchemaValidationBadJSON(t *testing.T) {
	wrapped, err := WithSchemaValidation(&fakeTool{name: "typed"})
	require.NoError(t, err)

	result, err := wrapped.Execute(context.Background(), json.RawMessage(`{not json`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "invalid JSON")
}
