package domain

import (
	"context"
	"encoding/json"
	"sort"
)

// Parameter types understood by the tool-call validator. Declared types
// outside this set pass through unchecked.
const (
	ParamString  = "string"
	ParamNumber  = "number"
	ParamBoolean = "boolean"
	ParamObject  = "object"
	ParamArray   = "array"
)

// ParamSpec declares a single tool parameter.
type ParamSpec struct {
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// ToolSchema describes a tool for the LLM function-calling protocol.
type ToolSchema struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters"`
}

// JSONSchema renders the declared parameters as a JSON Schema document,
// the shape wire adapters hand to model APIs.
func (s ToolSchema) JSONSchema() json.RawMessage {
	type property struct {
		Type        string   `json:"type,omitempty"`
		Enum        []string `json:"enum,omitempty"`
		Description string   `json:"description,omitempty"`
	}
	doc := struct {
		Type       string              `json:"type"`
		Properties map[string]property `json:"properties"`
		Required   []string            `json:"required,omitempty"`
	}{
		Type:       "object",
		Properties: make(map[string]property, len(s.Parameters)),
	}
	for name, spec := range s.Parameters {
		doc.Properties[name] = property{
			Type:        spec.Type,
			Enum:        spec.Enum,
			Description: spec.Description,
		}
		if spec.Required {
			doc.Required = append(doc.Required, name)
		}
	}
	sort.Strings(doc.Required)
	raw, err := json.Marshal(doc)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return raw
}

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// Tool is the interface every tool must implement.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup, schema listing, and validated
// execution for the orchestrator loop.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, params json.RawMessage) (*ToolResult, error)
	Schemas() []ToolSchema
	UsedTools() []string
}
