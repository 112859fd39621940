package cost

import (
	"sync"

	"ensemble-ai/internal/domain"
)

// Default flat per-token rates in currency units. These are rough estimates,
// not billing-grade accounting; real cost tables belong to provider metadata.
const (
	DefaultInputRate  = 0.000003
	DefaultOutputRate = 0.000015
)

// Rates holds per-token pricing for cost estimation. Pluggable per model.
type Rates struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Totals is a snapshot of the tracker's running counters.
type Totals struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	ToolCalls     int     `json:"tool_calls"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// Tracker accumulates token and tool-call counts plus estimated monetary
// cost for one orchestration session, and evaluates budget violations.
type Tracker struct {
	mu     sync.Mutex
	rates  Rates
	totals Totals
}

// NewTracker creates a tracker with the given rates. Zero rates fall back
// to the flat defaults.
func NewTracker(rates Rates) *Tracker {
	if rates.Input <= 0 {
		rates.Input = DefaultInputRate
	}
	if rates.Output <= 0 {
		rates.Output = DefaultOutputRate
	}
	return &Tracker{rates: rates}
}

// RecordTokens adds token counts to the running totals and recomputes the
// estimated cost.
func (t *Tracker) RecordTokens(input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totals.InputTokens += input
	t.totals.OutputTokens += output
	t.totals.EstimatedCost += float64(input)*t.rates.Input + float64(output)*t.rates.Output
}

// RecordToolCall increments the tool-call count and adds a flat cost.
func (t *Tracker) RecordToolCall(flatCost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totals.ToolCalls++
	t.totals.EstimatedCost += flatCost
}

// RecordUsage is a convenience for RecordTokens from a provider usage block.
func (t *Tracker) RecordUsage(usage domain.Usage) {
	t.RecordTokens(usage.PromptTokens, usage.CompletionTokens)
}

// Totals returns a snapshot of the running counters.
func (t *Tracker) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals
}

// Violations returns every budget resource whose running total has reached
// its limit. Comparison is inclusive: current >= limit violates.
func (t *Tracker) Violations(budget domain.Budget) []domain.BudgetViolation {
	t.mu.Lock()
	defer t.mu.Unlock()

	var violations []domain.BudgetViolation
	if budget.MaxCost != nil && t.totals.EstimatedCost >= *budget.MaxCost {
		violations = append(violations, domain.BudgetViolation{
			Resource: "cost",
			Current:  t.totals.EstimatedCost,
			Limit:    *budget.MaxCost,
		})
	}
	if budget.MaxTokens != nil {
		total := t.totals.InputTokens + t.totals.OutputTokens
		if total >= *budget.MaxTokens {
			violations = append(violations, domain.BudgetViolation{
				Resource: "tokens",
				Current:  float64(total),
				Limit:    float64(*budget.MaxTokens),
			})
		}
	}
	if budget.MaxToolCalls != nil && t.totals.ToolCalls >= *budget.MaxToolCalls {
		violations = append(violations, domain.BudgetViolation{
			Resource: "tool_calls",
			Current:  float64(t.totals.ToolCalls),
			Limit:    float64(*budget.MaxToolCalls),
		})
	}
	return violations
}

// CheckBudget evaluates the running totals against a budget. All violated
// resources are reported together.
func (t *Tracker) CheckBudget(budget domain.Budget) domain.BudgetCheck {
	violations := t.Violations(budget)
	check := domain.BudgetCheck{WithinBudget: len(violations) == 0}
	for _, v := range violations {
		check.Violations = append(check.Violations, v.String())
	}
	return check
}

// Reset zeroes all running totals. The budget is supplied per check, not
// owned by the tracker, so there is nothing else to clear.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals = Totals{}
}
