package config

import (
	"strings"
	"testing"
	"time"

	"ensemble-ai/internal/domain"
)

func assertContains(t *testing.T, s, want string) {
	t.Helper()
	if !strings.Contains(s, want) {
		t.Errorf("error %q does not contain %q", s, want)
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateMaxIterationsZero(t *testing.T) {
	cfg := Defaults()
	cfg.Orchestrator.MaxIterations = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "orchestrator.max_iterations must be > 0")
}

func TestValidateModelEmpty(t *testing.T) {
	cfg := Defaults()
	cfg.Model.Model = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "model.model must not be empty")
}

func TestValidateModelUnknownProvider(t *testing.T) {
	cfg := Defaults()
	cfg.Model.Provider = "groq"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "not a supported provider")
}

func TestValidateModelEmptyProviderAllowed(t *testing.T) {
	// Empty provider means auto-detection from the model id.
	cfg := Defaults()
	cfg.Model.Provider = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("empty provider should pass: %v", err)
	}
}

func TestValidateModelTemperatureRange(t *testing.T) {
	cfg := Defaults()
	cfg.Model.Temperature = 2.5
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "model.temperature")
}

func TestValidateFallbacks(t *testing.T) {
	cfg := Defaults()
	cfg.Fallbacks = []domain.ModelConfig{
		{Model: "gpt-5-mini"},
		{Model: "", Provider: "anthropic"},
		{Model: "x", Provider: "groq"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "fallbacks[1].model must not be empty")
	assertContains(t, err.Error(), `fallbacks[2].provider "groq"`)
}

func TestValidateProvidersUnknownName(t *testing.T) {
	cfg := Defaults()
	cfg.Providers = map[string]ProviderConfig{
		"mistral-cloud": {APIKey: "k"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "providers.mistral-cloud")
}

func TestValidateBudgetNegative(t *testing.T) {
	cfg := Defaults()
	cost := -1.0
	tokens := -5
	cfg.Budget.MaxCost = &cost
	cfg.Budget.MaxTokens = &tokens
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "budget.max_cost must not be negative")
	assertContains(t, err.Error(), "budget.max_tokens must not be negative")
}

func TestValidateBudgetZeroAllowed(t *testing.T) {
	// A zero limit is a valid "spend nothing" budget.
	cfg := Defaults()
	zero := 0
	cfg.Budget.MaxToolCalls = &zero
	if err := Validate(cfg); err != nil {
		t.Fatalf("zero budget should pass: %v", err)
	}
}

func TestValidateRatesNegative(t *testing.T) {
	cfg := Defaults()
	cfg.Rates.Input = -0.01
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "rates.input must not be negative")
}

func TestValidateLoggerLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Level = "verbose"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `logger.level "verbose"`)
}

func TestValidateLoggerFormat(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Format = "logfmt"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "logger.format")
}

func TestValidateTracerExporter(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Enabled = true
	cfg.Tracer.Exporter = "jaeger"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "tracer.exporter")
}

func TestValidateTracerDisabledSkipsChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Enabled = false
	cfg.Tracer.Exporter = "jaeger"
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled tracer should not be validated: %v", err)
	}
}

func TestValidateCircuitBreakerEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.CircuitBreaker.Enabled = true
	cfg.CircuitBreaker.MaxFailures = 0
	cfg.CircuitBreaker.Timeout = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "circuit_breaker.max_failures must be > 0")
	assertContains(t, err.Error(), "circuit_breaker.timeout must be > 0")
}

func TestValidateToolsUnknownName(t *testing.T) {
	cfg := Defaults()
	cfg.Tools.Enabled = []string{"calculator", "teleport"}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `unknown tool "teleport"`)
}

func TestValidateToolsGitHubNeedsToken(t *testing.T) {
	cfg := Defaults()
	cfg.Tools.Enabled = []string{"github"}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "tools.github_token is required")
}

func TestValidateToolsUploadNeedsBucket(t *testing.T) {
	cfg := Defaults()
	cfg.Tools.Upload.Enabled = true
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "tools.upload.bucket is required")
}

func TestValidateToolsRateLimit(t *testing.T) {
	cfg := Defaults()
	cfg.Tools.RateLimit.Enabled = true
	cfg.Tools.RateLimit.CallsPerMinute = 0
	cfg.Tools.RateLimit.Burst = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "calls_per_minute must be > 0")
	assertContains(t, err.Error(), "burst must be > 0")
}

func TestValidateMCPServerMissingName(t *testing.T) {
	cfg := Defaults()
	cfg.MCPServers = []MCPServer{{Transport: "stdio", Command: "server"}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "mcp_servers[0].name must not be empty")
}

func TestValidateMCPServerStdioNeedsCommand(t *testing.T) {
	cfg := Defaults()
	cfg.MCPServers = []MCPServer{{Name: "files", Transport: "stdio"}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "command is required for stdio transport")
}

func TestValidateMCPServerHTTPNeedsURL(t *testing.T) {
	cfg := Defaults()
	cfg.MCPServers = []MCPServer{{Name: "remote", Transport: "http"}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "url is required for http transport")
}

func TestValidateMCPServerBadTransport(t *testing.T) {
	cfg := Defaults()
	cfg.MCPServers = []MCPServer{{Name: "x", Transport: "grpc"}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `transport must be "stdio" or "http"`)
}

func TestValidateMCPServerDuplicateName(t *testing.T) {
	cfg := Defaults()
	cfg.MCPServers = []MCPServer{
		{Name: "files", Transport: "stdio", Command: "a"},
		{Name: "files", Transport: "stdio", Command: "b"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `duplicate server name "files"`)
}

func TestValidateMultipleErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Orchestrator.MaxIterations = 0
	cfg.Model.Model = ""
	cfg.Rates.Output = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("Errors = %d, want 3: %v", len(ve.Errors), ve.Errors)
	}
}

func TestValidationErrorFormat(t *testing.T) {
	ve := &ValidationError{}
	ve.Add("first problem")
	ve.Add("second problem with %d detail", 42)

	msg := ve.Error()
	assertContains(t, msg, "config validation failed")
	assertContains(t, msg, "first problem")
	assertContains(t, msg, "second problem with 42 detail")
}

func TestValidateValidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Model.Provider = "anthropic"
	cfg.Providers = map[string]ProviderConfig{
		"anthropic": {APIKey: "sk-test"},
	}
	cfg.CircuitBreaker = CircuitBreakerConfig{
		Enabled:     true,
		MaxFailures: 3,
		Timeout:     15 * time.Second,
	}
	cfg.Tools.Enabled = []string{"calculator", "fetch", "upload"}
	cfg.Tools.Upload = UploadConfig{Enabled: true, Bucket: "reports", Region: "us-east-1"}
	cfg.MCPServers = []MCPServer{
		{Name: "files", Transport: "stdio", Command: "mcp-files"},
		{Name: "remote", Transport: "http", URL: "https://mcp.example.com"},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
