package multiai

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ensemble-ai/internal/domain"
)

// ChainStep is one step of a sequential tool chain. Params carries a static
// argument document; ComputeParams, when set, derives the document from all
// prior step results instead, enabling data-dependent pipelines. OnError
// decides whether the chain continues past this step's failure; with no
// callback the chain halts.
type ChainStep struct {
	Tool          string
	Params        json.RawMessage
	ComputeParams func(prior []ChainResult) (json.RawMessage, error)
	OnError       func(step int, err error) bool
}

// ChainResult records one step's outcome. Results accumulate for every
// attempted step, success or failure.
type ChainResult struct {
	Step     int           `json:"step"`
	Tool     string        `json:"tool"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ExecuteToolChain runs the steps in order against the executor. The
// returned slice holds one result per attempted step; a halting failure
// leaves later steps unattempted.
func ExecuteToolChain(ctx context.Context, tools domain.ToolExecutor, steps []ChainStep, logger *slog.Logger) []ChainResult {
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]ChainResult, 0, len(steps))
	for i, step := range steps {
		res := executeChainStep(ctx, tools, i, step, results)
		results = append(results, res)

		if res.Success {
			continue
		}
		proceed := false
		if step.OnError != nil {
			proceed = step.OnError(i, chainError(res))
		}
		if !proceed {
			logger.Warn("tool chain halted", "step", i, "tool", step.Tool, "error", res.Error)
			break
		}
		logger.Debug("tool chain continuing past failure", "step", i, "tool", step.Tool)
	}
	return results
}

func executeChainStep(ctx context.Context, tools domain.ToolExecutor, idx int, step ChainStep, prior []ChainResult) ChainResult {
	start := time.Now()
	res := ChainResult{Step: idx, Tool: step.Tool}

	params := step.Params
	if step.ComputeParams != nil {
		computed, err := step.ComputeParams(prior)
		if err != nil {
			res.Error = "compute params: " + err.Error()
			res.Duration = time.Since(start)
			return res
		}
		params = computed
	}
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	result, err := tools.Execute(ctx, step.Tool, params)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if result.IsError {
		res.Error = result.Content
		return res
	}
	res.Success = true
	res.Output = result.Content
	return res
}

func chainError(res ChainResult) error {
	return domain.NewDomainError("multiai.ExecuteToolChain", domain.ErrToolFailure, res.Error)
}
