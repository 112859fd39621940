package ensemble

import (
	"log/slog"

	"ensemble-ai/internal/adapter/llm"
	"ensemble-ai/internal/domain"
	"ensemble-ai/internal/usecase"
)

// The orchestration contracts live in internal packages; these aliases make
// them nameable by embedding applications. A host implements Tool to add its
// own tools, CustomLogicFunc or PromptBasedStrategy to override the loop,
// and receives an OrchestratorContext at delegation time.

// Core domain types.
type (
	Tool         = domain.Tool
	ToolExecutor = domain.ToolExecutor
	ToolSchema   = domain.ToolSchema
	ParamSpec    = domain.ParamSpec
	ToolCall     = domain.ToolCall
	ToolResult   = domain.ToolResult

	Message      = domain.Message
	ChatRequest  = domain.ChatRequest
	ChatResponse = domain.ChatResponse
	Usage        = domain.Usage

	ModelConfig = domain.ModelConfig
	Budget      = domain.Budget

	LLMProvider  = domain.LLMProvider
	ModelGateway = domain.ModelGateway
	Uploader     = domain.Uploader

	ExecutionResult = domain.ExecutionResult
	ExecutionStats  = domain.ExecutionStats
)

// Message roles.
const (
	RoleSystem    = domain.RoleSystem
	RoleUser      = domain.RoleUser
	RoleAssistant = domain.RoleAssistant
	RoleTool      = domain.RoleTool
)

// Declared parameter types for tool schemas.
const (
	ParamString  = domain.ParamString
	ParamNumber  = domain.ParamNumber
	ParamBoolean = domain.ParamBoolean
	ParamObject  = domain.ParamObject
	ParamArray   = domain.ParamArray
)

// Provider names.
const (
	ProviderAnthropic = domain.ProviderAnthropic
	ProviderOpenAI    = domain.ProviderOpenAI
	ProviderBedrock   = domain.ProviderBedrock
	ProviderOllama    = domain.ProviderOllama
)

// Sentinel errors integrators are expected to match with errors.Is.
var (
	ErrNotFound        = domain.ErrNotFound
	ErrInvalidInput    = domain.ErrInvalidInput
	ErrToolNotFound    = domain.ErrToolNotFound
	ErrMaxIterations   = domain.ErrMaxIterations
	ErrBudgetExceeded  = domain.ErrBudgetExceeded
	ErrNoUsableTools   = domain.ErrNoUsableTools
	ErrStrategyInvalid = domain.ErrStrategyInvalid
)

// Orchestration surface.
type (
	Orchestrator        = usecase.Orchestrator
	OrchestratorConfig  = usecase.OrchestratorConfig
	OrchestratorDeps    = usecase.OrchestratorDeps
	OrchestratorContext = usecase.OrchestratorContext

	Strategy     = usecase.Strategy
	StrategyInfo = usecase.StrategyInfo
	StrategyKind = usecase.StrategyKind

	PromptBasedStrategy = usecase.PromptBasedStrategy
	CustomLogicStrategy = usecase.CustomLogicStrategy
	CustomLogicFunc     = usecase.CustomLogicFunc
	CustomLogicHooks    = usecase.CustomLogicHooks

	StrategyRegistry = usecase.Registry
	ToolRegistry     = usecase.ToolRegistry
)

// Strategy variants.
const (
	KindPromptBased = usecase.KindPromptBased
	KindCustomLogic = usecase.KindCustomLogic
)

// NewOrchestrator builds an orchestrator from explicit config and deps. Most
// hosts get one pre-wired from New; this is for embedding without a System.
func NewOrchestrator(cfg OrchestratorConfig, deps OrchestratorDeps) *Orchestrator {
	return usecase.NewOrchestrator(cfg, deps)
}

// NewStrategyRegistry creates an empty strategy registry.
func NewStrategyRegistry(logger *slog.Logger) *StrategyRegistry {
	return usecase.NewRegistry(logger)
}

// NewPromptBasedStrategy builds a strategy that overrides the system prompt
// and filters the visible tool set. An empty allow-list exposes every parent
// tool.
func NewPromptBasedStrategy(info StrategyInfo, systemPrompt string, allowedTools []string) (*PromptBasedStrategy, error) {
	return usecase.NewPromptBasedStrategy(info, systemPrompt, allowedTools)
}

// NewCustomLogicStrategy builds a strategy that replaces the default loop
// with the given logic func.
func NewCustomLogicStrategy(info StrategyInfo, logic CustomLogicFunc, hooks CustomLogicHooks) (*CustomLogicStrategy, error) {
	return usecase.NewCustomLogicStrategy(info, logic, hooks)
}

// DetectProvider guesses the serving provider from a model id.
func DetectProvider(modelID string) string {
	return llm.DetectProvider(modelID)
}
