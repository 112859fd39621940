package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"ensemble-ai/internal/domain"
	"ensemble-ai/internal/infra/tracer"
)

// ActionHandler is a function that handles a single action for a tool.
type ActionHandler[P any] func(ctx context.Context, p P) (any, error)

// ActionMap maps action names to their handlers for an action-based tool.
type ActionMap[P any] map[string]ActionHandler[P]

// Dispatch creates a handler function for Execute[P] that routes by action name.
// The getAction function extracts the action string from the params struct.
func Dispatch[P any](
	getAction func(P) string,
	actions ActionMap[P],
) func(ctx context.Context, span trace.Span, p P) (any, error) {
	// Pre-compute sorted action names for deterministic BadAction messages.
	validActions := make([]string, 0, len(actions))
	for name := range actions {
		validActions = append(validActions, name)
	}
	sort.Strings(validActions)

	return func(ctx context.Context, span trace.Span, p P) (any, error) {
		action := getAction(p)
		span.SetAttributes(tracer.StringAttr("tool.action", action))

		handler, ok := actions[action]
		if !ok {
			return nil, BadAction(action, validActions...)
		}
		return handler(ctx, p)
	}
}

// TextResult creates a plain text success ToolResult.
func TextResult(s string) *domain.ToolResult {
	return &domain.ToolResult{Content: s}
}

// ErrResult creates an error ToolResult for validation failures that should
// go back to the model without being logged as warnings.
func ErrResult(format string, args ...any) (*domain.ToolResult, error) {
	return &domain.ToolResult{
		IsError: true,
		Content: fmt.Sprintf(format, args...),
	}, nil
}

// BadAction returns an error for an unknown action with a hint listing valid actions.
func BadAction(got string, valid ...string) error {
	return fmt.Errorf("unknown action %q (want: %s)", got, strings.Join(valid, ", "))
}

// RequireField validates that a required string field is non-empty.
func RequireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("'%s' is required", name)
	}
	return nil
}

// RequireFields validates multiple required string fields at once.
// Arguments are name/value pairs.
func RequireFields(kvs ...string) error {
	if len(kvs)%2 != 0 {
		return fmt.Errorf("RequireFields: odd number of arguments")
	}
	for i := 0; i < len(kvs); i += 2 {
		if kvs[i+1] == "" {
			return fmt.Errorf("'%s' is required", kvs[i])
		}
	}
	return nil
}
