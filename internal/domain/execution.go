package domain

import "time"

// ExecutionStats aggregates timing samples collected during one execution.
// Derived at the end of each run from per-step and per-tool-call samples;
// reset at the start of every execution.
type ExecutionStats struct {
	TotalDuration           time.Duration `json:"total_duration"`
	StepsExecuted           int           `json:"steps_executed"`
	ToolCallsExecuted       int           `json:"tool_calls_executed"`
	AverageStepDuration     time.Duration `json:"average_step_duration"`
	AverageToolCallDuration time.Duration `json:"average_tool_call_duration"`
}

// ExecutionResult is the single uniform output of every execution path:
// default loop, prompt-based delegate, or custom-logic delegate. Callers
// branch on Success and Error only; partial progress (messages, iterations,
// tool provenance) is always populated, including on failure.
type ExecutionResult struct {
	ID            string          `json:"id"`
	Success       bool            `json:"success"`
	Result        string          `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	Messages      []Message       `json:"messages"`
	Iterations    int             `json:"iterations"`
	Usage         *Usage          `json:"usage,omitempty"`
	ToolCallsUsed []string        `json:"tool_calls_used"`
	Stats         *ExecutionStats `json:"execution_stats,omitempty"`
}
