package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-ai/internal/domain"
)

// fakeTool is a scriptable tool for registry tests.
type fakeTool struct {
	name   string
	params map[string]domain.ParamSpec
	run    func(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error)
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool " + f.name }
func (f *fakeTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: f.name, Description: f.Description(), Parameters: f.params}
}
func (f *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	if f.run != nil {
		return f.run(ctx, params)
	}
	return &domain.ToolResult{Content: "ok"}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry(testLogger())

	require.NoError(t, r.Register(&fakeTool{name: "echo"}))
	err := r.Register(&fakeTool{name: "echo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolDuplicate)
	assert.Len(t, r.List(), 1)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(testLogger())
	require.NoError(t, r.Register(&fakeTool{name: "echo"}))

	require.NoError(t, r.Remove("echo"))
	assert.False(t, r.Has("echo"))

	err := r.Remove("echo")
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(testLogger())

	_, err := r.Execute(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
	assert.Empty(t, r.UsedTools())
}

func TestRegistryExecuteValidatesParams(t *testing.T) {
	r := NewRegistry(testLogger())
	require.NoError(t, r.Register(&fakeTool{
		name: "greet",
		params: map[string]domain.ParamSpec{
			"who": {Type: domain.ParamString, Required: true},
		},
	}))

	_, err := r.Execute(context.Background(), "greet", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolValidation)
	// Validation failures never count as tool usage.
	assert.Empty(t, r.UsedTools())
}

func TestRegistryExecuteMarksUsedEvenOnFailure(t *testing.T) {
	r := NewRegistry(testLogger())
	require.NoError(t, r.Register(&fakeTool{
		name: "flaky",
		run: func(context.Context, json.RawMessage) (*domain.ToolResult, error) {
			return nil, fmt.Errorf("backend down")
		},
	}))

	_, err := r.Execute(context.Background(), "flaky", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolFailure)
	assert.Contains(t, err.Error(), "backend down")
	assert.Equal(t, []string{"flaky"}, r.UsedTools())
}

func TestRegistryUsedToolsSortedAndReset(t *testing.T) {
	r := NewRegistry(testLogger())
	require.NoError(t, r.Register(&fakeTool{name: "zeta"}))
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))

	_, err := r.Execute(context.Background(), "zeta", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = r.Execute(context.Background(), "alpha", json.RawMessage(`{}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "zeta"}, r.UsedTools())

	r.Reset()
	assert.Empty(t, r.UsedTools())
	// Tools survive a reset, only usage tracking clears.
	assert.True(t, r.Has("zeta"))
	assert.True(t, r.Has("alpha"))
}

func TestRegistrySchemasSortedByName(t *testing.T) {
	r := NewRegistry(testLogger())
	require.NoError(t, r.Register(&fakeTool{name: "charlie"}))
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))
	require.NoError(t, r.Register(&fakeTool{name: "bravo"}))

	schemas := r.Schemas()
	require.Len(t, schemas, 3)
	assert.Equal(t, "alpha", schemas[0].Name)
	assert.Equal(t, "bravo", schemas[1].Name)
	assert.Equal(t, "charlie", schemas[2].Name)
}

func TestRegistryGetReturnsRegisteredTool(t *testing.T) {
	r := NewRegistry(testLogger())
	ft := &fakeTool{name: "echo"}
	require.NoError(t, r.Register(ft))

	got, err := r.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Name())

	var de *domain.DomainError
	_, err = r.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.As(err, &de))
}
