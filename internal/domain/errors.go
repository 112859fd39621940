package domain

import (
	"errors"
	"fmt"
)

// Category sentinels — use with NewDomainError to tag failures.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrProviderNotFound = fmt.Errorf("llm provider not found")
	ErrToolNotFound     = fmt.Errorf("tool not found")
	ErrToolDuplicate    = fmt.Errorf("tool already registered")
	ErrToolValidation   = fmt.Errorf("tool parameter validation failed")
	ErrToolFailure      = fmt.Errorf("tool execution failed")
	ErrMaxIterations    = fmt.Errorf("orchestrator reached max iterations")
	ErrBudgetExceeded   = fmt.Errorf("budget exceeded")
	ErrNoUsableTools    = fmt.Errorf("no tools survive the allow-list filter")
	ErrStrategyInvalid  = fmt.Errorf("strategy does not satisfy its contract")
	ErrConfigLoad       = fmt.Errorf("failed to load configuration")
	ErrNoResults        = fmt.Errorf("no successful results to consolidate")

	// Resilience errors raised by provider adapters.
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "ToolRegistry.Execute")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// BudgetError reports one or more violated budget resources. It unwraps to
// ErrBudgetExceeded so callers can branch with errors.Is.
type BudgetError struct {
	Violations []BudgetViolation
}

func (e *BudgetError) Error() string {
	msg := ErrBudgetExceeded.Error()
	for _, v := range e.Violations {
		msg += ": " + v.String()
	}
	return msg
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrProviderError)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

// Error codes. Every sentinel maps to exactly one code.
const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeProviderError    ErrorCode = "PROVIDER_ERROR"
	CodeProviderNotFound ErrorCode = "PROVIDER_NOT_FOUND"
	CodeToolNotFound     ErrorCode = "TOOL_NOT_FOUND"
	CodeToolDuplicate    ErrorCode = "TOOL_DUPLICATE"
	CodeToolValidation   ErrorCode = "TOOL_VALIDATION"
	CodeToolFailure      ErrorCode = "TOOL_FAILURE"
	CodeMaxIterations    ErrorCode = "MAX_ITERATIONS"
	CodeBudgetExceeded   ErrorCode = "BUDGET_EXCEEDED"
	CodeNoUsableTools    ErrorCode = "NO_USABLE_TOOLS"
	CodeStrategyInvalid  ErrorCode = "STRATEGY_INVALID"
	CodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	CodeNoResults        ErrorCode = "NO_RESULTS"
	CodeContextOverflow  ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit        ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid      ErrorCode = "AUTH_INVALID"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:         CodeNotFound,
	ErrDuplicate:        CodeDuplicate,
	ErrTimeout:          CodeTimeout,
	ErrInvalidInput:     CodeInvalidInput,
	ErrProviderError:    CodeProviderError,
	ErrProviderNotFound: CodeProviderNotFound,
	ErrToolNotFound:     CodeToolNotFound,
	ErrToolDuplicate:    CodeToolDuplicate,
	ErrToolValidation:   CodeToolValidation,
	ErrToolFailure:      CodeToolFailure,
	ErrMaxIterations:    CodeMaxIterations,
	ErrBudgetExceeded:   CodeBudgetExceeded,
	ErrNoUsableTools:    CodeNoUsableTools,
	ErrStrategyInvalid:  CodeStrategyInvalid,
	ErrConfigLoad:       CodeConfigLoad,
	ErrNoResults:        CodeNoResults,
	ErrContextOverflow:  CodeContextOverflow,
	ErrRateLimit:        CodeRateLimit,
	ErrAuthInvalid:      CodeAuthInvalid,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and walks the chain with errors.Is.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
