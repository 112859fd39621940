package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateModel(cfg, ve)
	validateFallbacks(cfg, ve)
	validateProviders(cfg, ve)
	validateOrchestrator(cfg, ve)
	validateBudget(cfg, ve)
	validateRates(cfg, ve)
	validateCircuitBreaker(cfg, ve)
	validateTools(cfg, ve)
	validateMCPServers(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if cfg.Logger.Level != "" && !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not a valid level", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format must be \"text\" or \"json\", got %q", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "stdout", "noop":
	default:
		ve.Add("tracer.exporter must be \"stdout\" or \"noop\", got %q", cfg.Tracer.Exporter)
	}
}

var validProviderNames = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"ollama":    true,
	"bedrock":   true,
}

func validateModel(cfg *Config, ve *ValidationError) {
	if cfg.Model.Model == "" {
		ve.Add("model.model must not be empty")
	}
	if cfg.Model.Provider != "" && !validProviderNames[cfg.Model.Provider] {
		ve.Add("model.provider %q is not a supported provider", cfg.Model.Provider)
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		ve.Add("model.temperature must be between 0 and 2")
	}
	if cfg.Model.MaxTokens < 0 {
		ve.Add("model.max_tokens must not be negative")
	}
}

func validateFallbacks(cfg *Config, ve *ValidationError) {
	for i, fb := range cfg.Fallbacks {
		if fb.Model == "" {
			ve.Add("fallbacks[%d].model must not be empty", i)
		}
		if fb.Provider != "" && !validProviderNames[fb.Provider] {
			ve.Add("fallbacks[%d].provider %q is not a supported provider", i, fb.Provider)
		}
	}
}

func validateProviders(cfg *Config, ve *ValidationError) {
	for name := range cfg.Providers {
		if !validProviderNames[name] {
			ve.Add("providers.%s is not a supported provider", name)
		}
	}
}

func validateOrchestrator(cfg *Config, ve *ValidationError) {
	if cfg.Orchestrator.MaxIterations <= 0 {
		ve.Add("orchestrator.max_iterations must be > 0")
	}
}

func validateBudget(cfg *Config, ve *ValidationError) {
	if cfg.Budget.MaxCost != nil && *cfg.Budget.MaxCost < 0 {
		ve.Add("budget.max_cost must not be negative")
	}
	if cfg.Budget.MaxTokens != nil && *cfg.Budget.MaxTokens < 0 {
		ve.Add("budget.max_tokens must not be negative")
	}
	if cfg.Budget.MaxToolCalls != nil && *cfg.Budget.MaxToolCalls < 0 {
		ve.Add("budget.max_tool_calls must not be negative")
	}
}

func validateRates(cfg *Config, ve *ValidationError) {
	if cfg.Rates.Input < 0 {
		ve.Add("rates.input must not be negative")
	}
	if cfg.Rates.Output < 0 {
		ve.Add("rates.output must not be negative")
	}
}

func validateCircuitBreaker(cfg *Config, ve *ValidationError) {
	if !cfg.CircuitBreaker.Enabled {
		return
	}
	if cfg.CircuitBreaker.MaxFailures == 0 {
		ve.Add("circuit_breaker.max_failures must be > 0 when enabled")
	}
	if cfg.CircuitBreaker.Timeout <= 0 {
		ve.Add("circuit_breaker.timeout must be > 0 when enabled")
	}
}

var validToolNames = map[string]bool{
	"calculator": true,
	"timestamp":  true,
	"fetch":      true,
	"github":     true,
	"upload":     true,
	"llm_task":   true,
}

func validateTools(cfg *Config, ve *ValidationError) {
	for _, name := range cfg.Tools.Enabled {
		if !validToolNames[name] {
			ve.Add("tools.enabled contains unknown tool %q", name)
		}
	}
	if containsTool(cfg.Tools.Enabled, "github") && cfg.Tools.GitHubToken == "" {
		ve.Add("tools.github_token is required when the github tool is enabled")
	}
	if containsTool(cfg.Tools.Enabled, "upload") && !cfg.Tools.Upload.Enabled {
		ve.Add("tools.upload must be configured when the upload tool is enabled")
	}
	if cfg.Tools.Upload.Enabled && cfg.Tools.Upload.Bucket == "" {
		ve.Add("tools.upload.bucket is required when upload is enabled")
	}
	if cfg.Tools.RateLimit.Enabled {
		if cfg.Tools.RateLimit.CallsPerMinute <= 0 {
			ve.Add("tools.rate_limit.calls_per_minute must be > 0 when enabled")
		}
		if cfg.Tools.RateLimit.Burst <= 0 {
			ve.Add("tools.rate_limit.burst must be > 0 when enabled")
		}
	}
	if cfg.Tools.LLMTask.MaxTokens < 0 {
		ve.Add("tools.llm_task.max_tokens must not be negative")
	}
}

func containsTool(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func validateMCPServers(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool)
	for i, srv := range cfg.MCPServers {
		if srv.Name == "" {
			ve.Add("mcp_servers[%d].name must not be empty", i)
			continue
		}
		if seen[srv.Name] {
			ve.Add("mcp_servers[%d]: duplicate server name %q", i, srv.Name)
		}
		seen[srv.Name] = true

		switch srv.Transport {
		case "stdio":
			if srv.Command == "" {
				ve.Add("mcp_servers[%d] (%s): command is required for stdio transport", i, srv.Name)
			}
		case "http":
			if srv.URL == "" {
				ve.Add("mcp_servers[%d] (%s): url is required for http transport", i, srv.Name)
			}
		default:
			ve.Add("mcp_servers[%d] (%s): transport must be \"stdio\" or \"http\", got %q", i, srv.Name, srv.Transport)
		}
	}
}
