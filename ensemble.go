// Package ensemble wires a ready-to-use orchestration stack (provider
// gateway, tool registry, cost tracking, strategy registry) from a YAML
// config. It is the front door for embedding the library in a host
// application; the internal packages stay free of construction order
// concerns.
package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ensemble-ai/internal/adapter/llm"
	"ensemble-ai/internal/adapter/tool"
	"ensemble-ai/internal/domain"
	"ensemble-ai/internal/infra/config"
	"ensemble-ai/internal/infra/logger"
	"ensemble-ai/internal/infra/tracer"
	"ensemble-ai/internal/usecase"
	"ensemble-ai/internal/usecase/cost"
)

// Built-in tools registered when cfg.Tools.Enabled is empty. These need no
// credentials.
var defaultTools = []string{"calculator", "timestamp", "fetch"}

// System bundles the wired components of one ensemble-ai instance.
type System struct {
	Config       *config.Config
	Logger       *slog.Logger
	Gateway      *llm.Gateway
	Tools        *tool.Registry
	Tracker      *cost.Tracker
	Orchestrator *usecase.Orchestrator
	Strategies   *usecase.Registry

	closers []func() error
}

// Load reads a config file and builds a System from it.
func Load(ctx context.Context, path string) (*System, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// New builds a System from an already-validated config.
func New(ctx context.Context, cfg *config.Config) (*System, error) {
	log, logClose, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	s := &System{
		Config:  cfg,
		Logger:  log,
		closers: []func() error{logClose},
	}

	traceShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("setup tracer: %w", err)
	}
	s.closers = append(s.closers, func() error { return traceShutdown(context.Background()) })

	s.Gateway = buildGateway(cfg, log)
	s.Tracker = cost.NewTracker(cost.Rates{Input: cfg.Rates.Input, Output: cfg.Rates.Output})
	s.Strategies = usecase.NewRegistry(log)

	tools, toolClosers, err := buildTools(ctx, cfg, s.Gateway, log)
	s.closers = append(s.closers, toolClosers...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Tools = tools

	model := defaultModel(cfg)
	s.Orchestrator = usecase.NewOrchestrator(
		usecase.OrchestratorConfig{
			Model:         model,
			SystemPrompt:  cfg.Orchestrator.SystemPrompt,
			MaxIterations: cfg.Orchestrator.MaxIterations,
			Budget:        cfg.Budget,
		},
		usecase.OrchestratorDeps{
			Gateway: s.Gateway,
			Tools:   tools,
			Tracker: s.Tracker,
			Counter: cost.NewCounter(""),
			Logger:  log,
			NewToolRegistry: func() usecase.ToolRegistry {
				return tool.NewRegistry(log)
			},
		},
	)

	return s, nil
}

// Close releases resources held by the system (log files, tracer, MCP
// connections). Safe to call after a failed New.
func (s *System) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// defaultModel resolves the configured default model descriptor, detecting
// the provider and filling credentials from the provider table.
func defaultModel(cfg *config.Config) domain.ModelConfig {
	model := cfg.Model
	if model.Provider == "" {
		model.Provider = llm.DetectProvider(model.Model)
	}
	return cfg.ResolveModel(model)
}

func buildGateway(cfg *config.Config, log *slog.Logger) *llm.Gateway {
	opts := llm.GatewayOptions{
		Client: llm.ClientOptions{
			ConnTimeout: cfg.Client.ConnTimeout,
			RespTimeout: cfg.Client.RespTimeout,
			Pool: llm.PoolConfig{
				MaxIdleConns:        cfg.Client.Pool.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.Client.Pool.MaxIdleConnsPerHost,
				MaxConnsPerHost:     cfg.Client.Pool.MaxConnsPerHost,
				IdleConnTimeout:     cfg.Client.Pool.IdleConnTimeout,
			},
		},
	}
	if cfg.CircuitBreaker.Enabled {
		opts.Breaker = &llm.CircuitBreakerConfig{
			MaxFailures: cfg.CircuitBreaker.MaxFailures,
			Timeout:     cfg.CircuitBreaker.Timeout,
			Interval:    cfg.CircuitBreaker.Interval,
		}
	}
	for _, fb := range cfg.Fallbacks {
		if fb.Provider == "" {
			fb.Provider = llm.DetectProvider(fb.Model)
		}
		opts.Fallbacks = append(opts.Fallbacks, cfg.ResolveModel(fb))
	}
	return llm.NewGateway(opts, log)
}

func buildTools(ctx context.Context, cfg *config.Config, gateway *llm.Gateway, log *slog.Logger) (*tool.Registry, []func() error, error) {
	reg := tool.NewRegistry(log)
	var closers []func() error

	enabled := cfg.Tools.Enabled
	if len(enabled) == 0 {
		enabled = defaultTools
	}

	for _, name := range enabled {
		t, err := buildTool(ctx, cfg, gateway, log, name)
		if err != nil {
			return nil, closers, err
		}
		if err := registerTool(reg, cfg, t); err != nil {
			return nil, closers, err
		}
	}

	if len(cfg.MCPServers) > 0 {
		bridge, err := tool.NewMCPBridge(ctx, cfg.MCPServers, log)
		if err != nil {
			return nil, closers, fmt.Errorf("build mcp bridge: %w", err)
		}
		closers = append(closers, func() error { bridge.Close(); return nil })
		for _, t := range bridge.Tools() {
			if err := registerTool(reg, cfg, t); err != nil {
				return nil, closers, err
			}
		}
	}

	return reg, closers, nil
}

func buildTool(ctx context.Context, cfg *config.Config, gateway *llm.Gateway, log *slog.Logger, name string) (domain.Tool, error) {
	switch name {
	case "calculator":
		return tool.NewCalculatorTool(log), nil
	case "timestamp":
		return tool.NewTimestampTool(log), nil
	case "fetch":
		return tool.NewFetchTool(log), nil
	case "github":
		return tool.NewGitHubTool(tool.NewHTTPGitHubBackend(cfg.Tools.GitHubToken), log), nil
	case "upload":
		uploader, err := tool.NewS3Uploader(ctx, tool.S3UploaderOptions{
			Bucket:    cfg.Tools.Upload.Bucket,
			Region:    cfg.Tools.Upload.Region,
			KeyPrefix: cfg.Tools.Upload.KeyPrefix,
			PublicURL: cfg.Tools.Upload.PublicURL,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("build s3 uploader: %w", err)
		}
		return tool.NewUploadTool(uploader, log), nil
	case "llm_task":
		return tool.NewLLMTaskTool(gateway, defaultModel(cfg), tool.LLMTaskConfig{
			AllowedModels: cfg.Tools.LLMTask.AllowedModels,
			MaxTokens:     cfg.Tools.LLMTask.MaxTokens,
			Timeout:       cfg.Tools.LLMTask.Timeout,
			MaxPromptSize: cfg.Tools.LLMTask.MaxPromptSize,
			MaxInputSize:  cfg.Tools.LLMTask.MaxInputSize,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

// registerTool applies the configured rate limit before registration.
func registerTool(reg *tool.Registry, cfg *config.Config, t domain.Tool) error {
	if cfg.Tools.RateLimit.Enabled {
		t = tool.WithRateLimit(t, cfg.Tools.RateLimit.CallsPerMinute, cfg.Tools.RateLimit.Burst)
	}
	return reg.Register(t)
}
