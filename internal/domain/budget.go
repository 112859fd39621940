package domain

import "fmt"

// Budget holds optional ceilings for one orchestration session. A nil field
// means that resource is unconstrained. Limits are inclusive: a running
// total equal to the limit is already a violation.
type Budget struct {
	MaxCost      *float64 `json:"max_cost,omitempty" yaml:"max_cost"`
	MaxTokens    *int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
	MaxToolCalls *int     `json:"max_tool_calls,omitempty" yaml:"max_tool_calls"`
}

// Unconstrained reports whether no limits are set at all.
func (b Budget) Unconstrained() bool {
	return b.MaxCost == nil && b.MaxTokens == nil && b.MaxToolCalls == nil
}

// BudgetCheck is the outcome of evaluating running totals against a Budget.
// Every violated resource is reported, not just the first.
type BudgetCheck struct {
	WithinBudget bool     `json:"within_budget"`
	Violations   []string `json:"violations,omitempty"`
}

// BudgetViolation names the violated resource with its current and limit
// values, for the failed-execution error surface.
type BudgetViolation struct {
	Resource string  // "cost", "tokens", or "tool_calls"
	Current  float64
	Limit    float64
}

func (v BudgetViolation) String() string {
	if v.Resource == "cost" {
		return fmt.Sprintf("cost %.6f >= limit %.6f", v.Current, v.Limit)
	}
	return fmt.Sprintf("%s %d >= limit %d", v.Resource, int(v.Current), int(v.Limit))
}
