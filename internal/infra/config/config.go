package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ensemble-ai/internal/domain"
)

// Config is the root configuration for an ensemble-ai deployment.
type Config struct {
	// Includes lists additional YAML files (globs allowed, relative to the
	// main config file) merged before the main file is applied.
	Includes []string `yaml:"includes,omitempty"`

	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`

	// Model is the default model descriptor used when callers do not pick
	// one explicitly.
	Model domain.ModelConfig `yaml:"model"`

	// Fallbacks lists model descriptors tried in order when a provider call
	// fails. Credentials are inherited from Providers the same way the
	// default model's are.
	Fallbacks []domain.ModelConfig `yaml:"fallbacks,omitempty"`

	// Providers holds per-provider credentials and endpoints, keyed by
	// provider name ("anthropic", "openai", "ollama", "bedrock"). Model
	// descriptors that omit credentials inherit them from here.
	Providers map[string]ProviderConfig `yaml:"providers"`

	Orchestrator   OrchestratorConfig   `yaml:"orchestrator"`
	Budget         domain.Budget        `yaml:"budget"`
	Rates          RatesConfig          `yaml:"rates"`
	Client         ClientConfig         `yaml:"client"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Tools          ToolsConfig          `yaml:"tools"`
	MCPServers     []MCPServer          `yaml:"mcp_servers"`
}

// ProviderConfig holds credentials and endpoint overrides for one provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Region  string `yaml:"region,omitempty"`
}

// OrchestratorConfig holds loop settings.
type OrchestratorConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	SystemPrompt  string `yaml:"system_prompt"`
}

// RatesConfig holds per-token pricing used for budget cost estimation.
type RatesConfig struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// ClientConfig holds HTTP client settings shared by provider adapters.
type ClientConfig struct {
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// CircuitBreakerConfig holds per-provider circuit breaker settings.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// ToolsConfig selects and configures the built-in tool set.
type ToolsConfig struct {
	// Enabled lists built-in tool names to register. Empty registers the
	// zero-credential defaults (calculator, timestamp, fetch).
	Enabled []string `yaml:"enabled"`

	GitHubToken string          `yaml:"github_token,omitempty"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Upload      UploadConfig    `yaml:"upload"`
	LLMTask     LLMTaskConfig   `yaml:"llm_task"`
}

// RateLimitConfig bounds how often the model may call each tool.
type RateLimitConfig struct {
	Enabled        bool    `yaml:"enabled"`
	CallsPerMinute float64 `yaml:"calls_per_minute"`
	Burst          int     `yaml:"burst"`
}

// UploadConfig configures the S3 report uploader.
type UploadConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region,omitempty"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
	PublicURL string `yaml:"public_url,omitempty"`
}

// LLMTaskConfig bounds the nested-generation tool.
type LLMTaskConfig struct {
	AllowedModels []string      `yaml:"allowed_models,omitempty"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxPromptSize int           `yaml:"max_prompt_size"`
	MaxInputSize  int           `yaml:"max_input_size"`
}

// MCPServer configures an MCP server connection.
type MCPServer struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
		Model: domain.ModelConfig{
			Model:       "claude-sonnet-4-5",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations: 10,
			SystemPrompt:  "You are a helpful AI assistant.",
		},
		Client: ClientConfig{
			ConnTimeout: 10 * time.Second,
			RespTimeout: 120 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:     false,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Tools: ToolsConfig{
			RateLimit: RateLimitConfig{
				Enabled:        false,
				CallsPerMinute: 60,
				Burst:          10,
			},
			LLMTask: LLMTaskConfig{
				MaxTokens:     4096,
				Timeout:       30 * time.Second,
				MaxPromptSize: 32 * 1024,
				MaxInputSize:  256 * 1024,
			},
		},
	}
}

// Load reads a YAML config file, merges includes, and applies env var
// overrides. A missing file is not an error: defaults plus env overrides
// are returned instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass: unmarshal to get the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Process includes (merges included files into cfg).
	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}

		// Second pass: re-unmarshal main config so it takes precedence over includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps ENSEMBLE_* env vars (plus the conventional
// provider API key vars) onto config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENSEMBLE_MODEL"); v != "" {
		cfg.Model.Model = v
	}
	if v := os.Getenv("ENSEMBLE_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("ENSEMBLE_SYSTEM_PROMPT"); v != "" {
		cfg.Orchestrator.SystemPrompt = v
	}
	if v := os.Getenv("ENSEMBLE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("ENSEMBLE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("ENSEMBLE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("ENSEMBLE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("ENSEMBLE_GITHUB_TOKEN"); v != "" {
		cfg.Tools.GitHubToken = v
	}

	setProviderKey(cfg, domain.ProviderAnthropic, os.Getenv("ANTHROPIC_API_KEY"))
	setProviderKey(cfg, domain.ProviderOpenAI, os.Getenv("OPENAI_API_KEY"))
}

// setProviderKey fills a provider API key from the environment without
// clobbering an explicitly configured one.
func setProviderKey(cfg *Config, provider, key string) {
	if key == "" {
		return
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	pc := cfg.Providers[provider]
	if pc.APIKey == "" {
		pc.APIKey = key
		cfg.Providers[provider] = pc
	}
}

// ResolveModel fills provider credentials into a model descriptor from the
// Providers table. Explicit descriptor values win. Descriptors with an
// empty Provider are returned unchanged; detect the provider first.
func (c *Config) ResolveModel(model domain.ModelConfig) domain.ModelConfig {
	pc, ok := c.Providers[model.Provider]
	if !ok {
		return model
	}
	if model.APIKey == "" {
		model.APIKey = pc.APIKey
	}
	if model.BaseURL == "" {
		model.BaseURL = pc.BaseURL
	}
	return model
}

// validatePermissions rejects group/world-writable config files, since they
// may carry API keys.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
