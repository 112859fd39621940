package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ensemble-ai/internal/domain"
)

// SchemaValidatingTool wraps a Tool with full JSON Schema validation on top
// of the registry's declared-parameter checks. Useful for tools whose
// parameters carry constraints the flat ParamSpec cannot express.
type SchemaValidatingTool struct {
	inner  domain.Tool
	schema *jsonschema.Schema
}

// WithSchemaValidation wraps a tool so that Execute validates params against
// the compiled JSON Schema derived from the tool's declared parameters.
// Returns an error if the schema fails to compile.
func WithSchemaValidation(t domain.Tool) (domain.Tool, error) {
	return WithRawSchemaValidation(t, t.Schema().JSONSchema())
}

// WithRawSchemaValidation wraps a tool with validation against an
// already-serialized JSON Schema. Callers that hold the source schema (MCP
// servers publish one per tool) keep constraints like minimum or pattern
// that the flat declared-parameter form cannot carry.
func WithRawSchemaValidation(t domain.Tool, raw json.RawMessage) (domain.Tool, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", t.Name(), err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Name(), err)
	}

	return &SchemaValidatingTool{inner: t, schema: compiled}, nil
}

func (s *SchemaValidatingTool) Name() string              { return s.inner.Name() }
func (s *SchemaValidatingTool) Description() string       { return s.inner.Description() }
func (s *SchemaValidatingTool) Schema() domain.ToolSchema { return s.inner.Schema() }

func (s *SchemaValidatingTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var v interface{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &v); err != nil {
			return &domain.ToolResult{
				IsError: true,
				Content: fmt.Sprintf("invalid JSON: %v", err),
			}, nil
		}
	} else {
		v = map[string]any{}
	}

	if err := s.schema.Validate(v); err != nil {
		return &domain.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("schema validation failed: %v", err),
		}, nil
	}

	return s.inner.Execute(ctx, params)
}
