package usecase

import (
	"context"
	"strings"

	"ensemble-ai/internal/domain"
)

// PromptBasedStrategy overrides the system prompt and filters the visible
// tool set, then re-enters the default loop on a fresh child orchestrator.
// The child sees only the snapshot handed over at delegation time; the
// parent's registry and history are never touched directly.
type PromptBasedStrategy struct {
	info         StrategyInfo
	systemPrompt string
	allowedTools []string
}

// NewPromptBasedStrategy builds a prompt-based strategy. Identity fields and
// the system prompt are required; an empty allow-list exposes every parent
// tool.
func NewPromptBasedStrategy(info StrategyInfo, systemPrompt string, allowedTools []string) (*PromptBasedStrategy, error) {
	s := &PromptBasedStrategy{
		info:         info,
		systemPrompt: systemPrompt,
		allowedTools: allowedTools,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Info implements Strategy.
func (s *PromptBasedStrategy) Info() StrategyInfo { return s.info }

// Kind implements Strategy.
func (s *PromptBasedStrategy) Kind() StrategyKind { return KindPromptBased }

// Validate implements Strategy.
func (s *PromptBasedStrategy) Validate() error {
	if err := validateInfo(s.info); err != nil {
		return err
	}
	if strings.TrimSpace(s.systemPrompt) == "" {
		return domain.NewDomainError("PromptBasedStrategy", domain.ErrStrategyInvalid, "missing system prompt")
	}
	return nil
}

// SystemPrompt returns the effective system prompt for a delegation.
// The base implementation returns the fixed prompt; wrappers may compute it
// from the context.
func (s *PromptBasedStrategy) SystemPrompt(_ *OrchestratorContext) string {
	return s.systemPrompt
}

// AllowedTools returns the configured allow-list.
func (s *PromptBasedStrategy) AllowedTools() []string { return s.allowedTools }

// Execute implements Strategy: filter tools, spawn a child orchestrator with
// the override prompt, run the default loop, and return its result verbatim.
func (s *PromptBasedStrategy) Execute(ctx context.Context, input string, octx *OrchestratorContext) *domain.ExecutionResult {
	tools, err := s.filterTools(octx.Tools)
	if err != nil {
		return failedResult("", err, octx.Messages, 0, nil)
	}

	if octx.NewToolRegistry == nil {
		return failedResult("", domain.NewDomainError("PromptBasedStrategy", domain.ErrStrategyInvalid,
			"no tool registry factory configured"), octx.Messages, 0, nil)
	}

	registry := octx.NewToolRegistry()
	for _, t := range tools {
		if regErr := registry.Register(t); regErr != nil {
			return failedResult("", regErr, octx.Messages, 0, nil)
		}
	}

	child := NewOrchestrator(OrchestratorConfig{
		Model:         octx.Model,
		SystemPrompt:  s.SystemPrompt(octx),
		MaxIterations: octx.MaxIterations,
		Budget:        octx.Budget,
		Params:        octx.Params,
	}, OrchestratorDeps{
		Gateway:         octx.Gateway,
		Tools:           registry,
		Logger:          octx.Logger,
		NewToolRegistry: octx.NewToolRegistry,
	})

	return child.Execute(ctx, input)
}

// filterTools applies the allow-list. A non-empty list that filters the
// parent's tools down to nothing is a wiring mistake, not an empty toolbox.
func (s *PromptBasedStrategy) filterTools(tools []domain.Tool) ([]domain.Tool, error) {
	if len(s.allowedTools) == 0 {
		return tools, nil
	}

	allowed := make(map[string]bool, len(s.allowedTools))
	for _, name := range s.allowedTools {
		allowed[name] = true
	}

	var filtered []domain.Tool
	for _, t := range tools {
		if allowed[t.Name()] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return nil, domain.NewDomainError("PromptBasedStrategy", domain.ErrNoUsableTools,
			strings.Join(s.allowedTools, ", "))
	}
	return filtered, nil
}
