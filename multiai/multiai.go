// Package multiai exposes the multi-model patterns (parallel fan-out,
// consolidation, partial-failure assessment, tool chains, cross-model
// synthesis) to embedding applications. The implementation lives in the
// internal usecase layer; this package re-exports its surface.
package multiai

import (
	"context"
	"log/slog"

	"ensemble-ai/internal/domain"
	core "ensemble-ai/internal/usecase/multiai"
)

type (
	Options = core.Options
	Result  = core.Result
	Runner  = core.Runner

	FailurePolicy     = core.FailurePolicy
	FailureAssessment = core.FailureAssessment

	ChainStep   = core.ChainStep
	ChainResult = core.ChainResult

	Analysis    = core.Analysis
	Synthesis   = core.Synthesis
	Synthesizer = core.Synthesizer
)

// Consolidation strategies accepted by Consolidate.
const (
	ConsolidateBest      = core.ConsolidateBest
	ConsolidateConsensus = core.ConsolidateConsensus
	ConsolidateWeighted  = core.ConsolidateWeighted
	ConsolidateAll       = core.ConsolidateAll
)

// Recommendations issued by HandlePartialFailures.
const (
	RecommendContinue = core.RecommendContinue
	RecommendAbort    = core.RecommendAbort
)

// NewRunner creates a fan-out runner over a model gateway.
func NewRunner(gateway domain.ModelGateway, logger *slog.Logger) *Runner {
	return core.NewRunner(gateway, logger)
}

// Consolidate reduces a fan-out's results to one output string.
func Consolidate(results []Result, strategy string) (string, error) {
	return core.Consolidate(results, strategy)
}

// HandlePartialFailures computes the success ratio of a fan-out and
// recommends continuing or aborting.
func HandlePartialFailures(results []Result, policy FailurePolicy) FailureAssessment {
	return core.HandlePartialFailures(results, policy)
}

// ExecuteToolChain runs dependent tool steps in order, substituting prior
// step outputs into later parameters.
func ExecuteToolChain(ctx context.Context, tools domain.ToolExecutor, steps []ChainStep, logger *slog.Logger) []ChainResult {
	return core.ExecuteToolChain(ctx, tools, steps, logger)
}

// NewSynthesizer creates a cross-model synthesizer.
func NewSynthesizer(gateway domain.ModelGateway, model domain.ModelConfig, uploader domain.Uploader, logger *slog.Logger) *Synthesizer {
	return core.NewSynthesizer(gateway, model, uploader, logger)
}
