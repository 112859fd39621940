package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"ensemble-ai/internal/domain"
	"ensemble-ai/internal/infra/tracer"
)

// Registry holds the invocable tools for one orchestration session. It
// validates call parameters against each tool's declared schema and tracks
// which tools were actually invoked, for result provenance.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	used   map[string]struct{}
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		used:   make(map[string]struct{}),
		logger: logger,
	}
}

// Register adds a tool. Returns ErrToolDuplicate if the name is taken;
// the registry is left unchanged in that case.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return domain.NewDomainError("ToolRegistry.Register", domain.ErrToolDuplicate, name)
	}
	r.tools[name] = t
	return nil
}

// Remove unregisters a tool. Returns ErrToolNotFound if absent.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return domain.NewDomainError("ToolRegistry.Remove", domain.ErrToolNotFound, name)
	}
	delete(r.tools, name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError("ToolRegistry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns all registered tools.
func (r *Registry) List() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]domain.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// Schemas returns all tool schemas, sorted by name. This is the shape
// handed to the model so it knows what it can call.
func (r *Registry) Schemas() []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, t.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Execute validates params against the tool's declared schema and invokes
// it. The tool is marked as used for this session once its body runs, even
// if it fails. Failures from the tool body are wrapped as ErrToolFailure
// carrying the original message.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (*domain.ToolResult, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.StartSpan(ctx, "tool.execute",
		trace.WithAttributes(tracer.StringAttr("tool.name", name)),
	)
	defer span.End()

	if err := ValidateParams(t.Schema(), params); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError("ToolRegistry.Execute", domain.ErrToolValidation, err.Error())
	}

	r.markUsed(name)

	result, err := t.Execute(ctx, params)
	if err != nil {
		tracer.RecordError(span, err)
		if r.logger != nil {
			r.logger.Warn("tool execution failed", "tool", name, "error", err)
		}
		return nil, domain.NewDomainError("ToolRegistry.Execute", domain.ErrToolFailure, err.Error())
	}

	tracer.SetOK(span)
	return result, nil
}

func (r *Registry) markUsed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used[name] = struct{}{}
}

// UsedTools returns the sorted names of tools invoked this session.
func (r *Registry) UsedTools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.used))
	for name := range r.used {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears the used-set without unregistering tools, supporting
// multi-turn reuse of the same tool set.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used = make(map[string]struct{})
}

// Compile-time interface check.
var _ domain.ToolExecutor = (*Registry)(nil)
