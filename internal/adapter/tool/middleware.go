package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"ensemble-ai/internal/domain"
	"ensemble-ai/internal/infra/tracer"
)

// Execute is the standard tool execution pipeline: parse params -> start
// trace -> run handler -> format result.
//
// The handler receives the parsed params and an active trace span. It should return:
//   - (any Go value, nil) — the value is JSON-marshaled into a success ToolResult
//   - (string, nil) — wrapped in a plain-text ToolResult
//   - (*domain.ToolResult, nil) — returned as-is (for custom formatting)
//   - (nil, error) — turned into an error ToolResult with logging
func Execute[P any](
	ctx context.Context,
	spanName string,
	logger *slog.Logger,
	rawParams json.RawMessage,
	handler func(ctx context.Context, span trace.Span, params P) (any, error),
) (*domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, spanName,
		trace.WithAttributes(tracer.StringAttr("tool.name", spanName)),
	)
	defer span.End()

	var p P
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &p); err != nil {
			tracer.RecordError(span, err)
			return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("invalid params: %v", err)}, nil
		}
	}

	result, err := handler(ctx, span, p)
	if err != nil {
		tracer.RecordError(span, err)
		if logger != nil {
			logger.Warn(spanName+" failed", "error", err)
		}
		return &domain.ToolResult{IsError: true, Content: err.Error()}, nil
	}

	tracer.SetOK(span)
	return formatResult(result)
}

// formatResult converts a handler return value into a ToolResult.
func formatResult(result any) (*domain.ToolResult, error) {
	switch v := result.(type) {
	case nil:
		return &domain.ToolResult{Content: "ok"}, nil
	case *domain.ToolResult:
		return v, nil
	case string:
		return &domain.ToolResult{Content: v}, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal tool result: %w", err)
		}
		return &domain.ToolResult{Content: string(data)}, nil
	}
}
