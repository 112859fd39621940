package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ensemble-ai/internal/domain"
)

// CustomLogicFunc fully replaces the default loop. Whatever it returns is
// formatted into the result string; errors and panics become failed results.
type CustomLogicFunc func(ctx context.Context, input string, octx *OrchestratorContext) (any, error)

// CustomLogicHooks are the optional lifecycle hooks around a custom-logic
// run. A nil hook is skipped; a nil Validate falls back to rejecting empty
// input.
type CustomLogicHooks struct {
	Initialize func(ctx context.Context, octx *OrchestratorContext) error
	Cleanup    func(ctx context.Context, octx *OrchestratorContext) error
	Validate   func(input string, octx *OrchestratorContext) error
}

// CustomLogicStrategy wraps a CustomLogicFunc as a registrable strategy.
type CustomLogicStrategy struct {
	info  StrategyInfo
	logic CustomLogicFunc
	hooks CustomLogicHooks
}

// NewCustomLogicStrategy builds a custom-logic strategy. Identity fields and
// the logic func are required.
func NewCustomLogicStrategy(info StrategyInfo, logic CustomLogicFunc, hooks CustomLogicHooks) (*CustomLogicStrategy, error) {
	s := &CustomLogicStrategy{info: info, logic: logic, hooks: hooks}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Info implements Strategy.
func (s *CustomLogicStrategy) Info() StrategyInfo { return s.info }

// Kind implements Strategy.
func (s *CustomLogicStrategy) Kind() StrategyKind { return KindCustomLogic }

// Validate implements Strategy.
func (s *CustomLogicStrategy) Validate() error {
	if err := validateInfo(s.info); err != nil {
		return err
	}
	if s.logic == nil {
		return domain.NewDomainError("CustomLogicStrategy", domain.ErrStrategyInvalid, "missing logic func")
	}
	return nil
}

// Execute implements Strategy. It never lets an error or panic escape; the
// custom-logic path is the escape hatch and must not crash the parent.
func (s *CustomLogicStrategy) Execute(ctx context.Context, input string, octx *OrchestratorContext) *domain.ExecutionResult {
	validate := s.hooks.Validate
	if validate == nil {
		validate = defaultValidateInput
	}
	if err := validate(input, octx); err != nil {
		return failedResult("", err, octx.Messages, 0, nil)
	}

	if s.hooks.Initialize != nil {
		if err := s.hooks.Initialize(ctx, octx); err != nil {
			return failedResult("", fmt.Errorf("initialize: %w", err), octx.Messages, 0, nil)
		}
	}

	result := runCustomLogic(ctx, s.logic, input, octx)

	if s.hooks.Cleanup != nil {
		if err := s.hooks.Cleanup(ctx, octx); err != nil {
			octx.Logger.Warn("strategy cleanup failed", "strategy", s.info.ID, "error", err)
		}
	}
	return result
}

// runCustomLogic invokes the logic func under panic recovery and lifts the
// outcome into an ExecutionResult.
func runCustomLogic(ctx context.Context, logic CustomLogicFunc, input string, octx *OrchestratorContext) (result *domain.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failedResult("", fmt.Errorf("custom logic panicked: %v", r), octx.Messages, 0, nil)
		}
	}()

	value, err := logic(ctx, input, octx)
	if err != nil {
		return failedResult("", err, octx.Messages, 0, nil)
	}

	return &domain.ExecutionResult{
		Success:    true,
		Result:     formatResultValue(value),
		Messages:   octx.Messages,
		Iterations: octx.Iterations,
	}
}

// formatResultValue renders a custom-logic return value as the result
// string: strings pass through, a "content" field is honored, anything else
// is JSON.
func formatResultValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if content, ok := v["content"].(string); ok {
			return content
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

// defaultValidateInput rejects blank input when no Validate hook is given.
func defaultValidateInput(input string, octx *OrchestratorContext) error {
	if strings.TrimSpace(input) != "" {
		return nil
	}
	for _, m := range octx.Messages {
		if strings.TrimSpace(m.Content) != "" {
			return nil
		}
	}
	return domain.NewDomainError("CustomLogicStrategy", domain.ErrInvalidInput, "empty input")
}

// validateInfo checks the identity fields every strategy must carry.
func validateInfo(info StrategyInfo) error {
	switch {
	case info.ID == "":
		return domain.NewDomainError("Strategy", domain.ErrStrategyInvalid, "missing id")
	case info.Name == "":
		return domain.NewDomainError("Strategy", domain.ErrStrategyInvalid, "missing name")
	case info.Description == "":
		return domain.NewDomainError("Strategy", domain.ErrStrategyInvalid, "missing description")
	}
	return nil
}
