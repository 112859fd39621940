package usecase

import (
	"context"
	"log/slog"

	"ensemble-ai/internal/domain"
)

// StrategyKind tags the two strategy variants. The tag plus per-variant
// constructor fields replace any runtime shape inspection: a value that
// compiles as one of the variants already carries its contract.
type StrategyKind string

const (
	KindPromptBased StrategyKind = "prompt-based"
	KindCustomLogic StrategyKind = "custom-logic"
)

// StrategyInfo is the identity every strategy carries.
type StrategyInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Strategy is a pluggable override of the orchestrator's default loop.
// Execute never returns a Go error; failures surface inside the result.
type Strategy interface {
	Info() StrategyInfo
	Kind() StrategyKind
	Validate() error
	Execute(ctx context.Context, input string, octx *OrchestratorContext) *domain.ExecutionResult
}

// ToolRegistry is the tool surface the orchestrator needs: validated
// execution plus session mutation. Satisfied by the adapter-layer registry.
type ToolRegistry interface {
	domain.ToolExecutor
	Register(t domain.Tool) error
	Remove(name string) error
	List() []domain.Tool
	Reset()
}

// OrchestratorContext is the view a strategy receives at delegation time:
// the parent's model, tools, history snapshot, iteration bookkeeping, and
// whatever it needs to build a child orchestrator. Strategies may append
// messages; the parent reconciles its counters from the returned result.
type OrchestratorContext struct {
	Model         domain.ModelConfig
	Tools         []domain.Tool
	Messages      []domain.Message
	Iterations    int
	MaxIterations int
	Budget        domain.Budget
	Params        map[string]any

	Gateway         domain.ModelGateway
	NewToolRegistry func() ToolRegistry
	Logger          *slog.Logger
}
