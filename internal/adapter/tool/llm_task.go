package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/trace"

	"ensemble-ai/internal/domain"
)

// LLMTaskTool delegates a structured subtask to a model and returns
// JSON-only output, so an orchestration loop can farm out extraction or
// classification work without burning its own iterations on it.
type LLMTaskTool struct {
	gateway      domain.ModelGateway
	defaultModel domain.ModelConfig
	logger       *slog.Logger
	config       LLMTaskConfig
}

// LLMTaskConfig holds limits for the LLM task tool.
type LLMTaskConfig struct {
	AllowedModels []string      // model IDs permitted for override, empty allows all
	MaxTokens     int           // default max_tokens for the nested call
	Timeout       time.Duration // cap for the nested call
	MaxPromptSize int           // max prompt length in bytes
	MaxInputSize  int           // max input payload size in bytes
}

// NewLLMTaskTool creates an LLM task tool resolving providers through the
// given gateway.
func NewLLMTaskTool(
	gateway domain.ModelGateway,
	defaultModel domain.ModelConfig,
	cfg LLMTaskConfig,
	logger *slog.Logger,
) *LLMTaskTool {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPromptSize <= 0 {
		cfg.MaxPromptSize = 32 * 1024
	}
	if cfg.MaxInputSize <= 0 {
		cfg.MaxInputSize = 256 * 1024
	}
	return &LLMTaskTool{
		gateway:      gateway,
		defaultModel: defaultModel,
		logger:       logger,
		config:       cfg,
	}
}

func (t *LLMTaskTool) Name() string { return "llm_task" }
func (t *LLMTaskTool) Description() string {
	return "Run a structured LLM subtask that returns JSON-only output. Optionally validate the response against a JSON Schema, and override the model."
}

func (t *LLMTaskTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]domain.ParamSpec{
			"prompt": {
				Type:        domain.ParamString,
				Required:    true,
				Description: "Task instruction. Must clearly describe the desired JSON output.",
			},
			"input": {
				Type:        domain.ParamObject,
				Description: "Optional input payload to include as context for the task",
			},
			"schema": {
				Type:        domain.ParamObject,
				Description: "Optional JSON Schema to validate the response against",
			},
			"model": {
				Type:        domain.ParamString,
				Description: "Model ID override, e.g. 'gpt-5-mini' or 'claude-haiku-4-5'",
			},
			"max_tokens": {
				Type:        domain.ParamNumber,
				Description: "Max tokens override for the response",
			},
			"timeout_ms": {
				Type:        domain.ParamNumber,
				Description: "Timeout in milliseconds for the nested call",
			},
		},
	}
}

type llmTaskParams struct {
	Prompt    string          `json:"prompt"`
	Input     json.RawMessage `json:"input,omitempty"`
	Schema    json.RawMessage `json:"schema,omitempty"`
	Model     string          `json:"model,omitempty"`
	MaxTokens *int            `json:"max_tokens,omitempty"`
	TimeoutMs *int            `json:"timeout_ms,omitempty"`
}

func (t *LLMTaskTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.llm_task", t.logger, params,
		func(ctx context.Context, _ trace.Span, p llmTaskParams) (any, error) {
			prompt := strings.TrimSpace(p.Prompt)
			if err := RequireField("prompt", prompt); err != nil {
				return nil, err
			}
			if len(prompt) > t.config.MaxPromptSize {
				return nil, fmt.Errorf("prompt too large: %d bytes (max %d)", len(prompt), t.config.MaxPromptSize)
			}
			if len(p.Input) > t.config.MaxInputSize {
				return nil, fmt.Errorf("input too large: %d bytes (max %d)", len(p.Input), t.config.MaxInputSize)
			}

			modelCfg := t.defaultModel
			if p.Model != "" {
				if len(t.config.AllowedModels) > 0 && !t.isModelAllowed(p.Model) {
					return nil, fmt.Errorf("model %q not in allowlist; allowed: %s",
						p.Model, strings.Join(t.config.AllowedModels, ", "))
				}
				modelCfg = modelCfg.WithModel(p.Model)
			}

			provider, err := t.gateway.Resolve(modelCfg)
			if err != nil {
				return nil, fmt.Errorf("resolve model %q: %v", modelCfg.Model, err)
			}

			systemPrompt := "You are a JSON-only function. " +
				"Return ONLY a valid JSON value. " +
				"Do not wrap in markdown fences. " +
				"Do not include commentary. " +
				"Do not call tools."

			var userContent strings.Builder
			userContent.WriteString("TASK:\n")
			userContent.WriteString(prompt)
			userContent.WriteString("\n")
			if len(p.Input) > 0 && !bytes.Equal(p.Input, []byte("null")) {
				userContent.WriteString("\nINPUT_JSON:\n")
				userContent.Write(p.Input)
				userContent.WriteString("\n")
			}

			maxTokens := t.config.MaxTokens
			if p.MaxTokens != nil && *p.MaxTokens > 0 && *p.MaxTokens < maxTokens {
				maxTokens = *p.MaxTokens
			}

			chatReq := domain.ChatRequest{
				Model: modelCfg.Model,
				Messages: []domain.Message{
					{Role: domain.RoleSystem, Content: systemPrompt},
					{Role: domain.RoleUser, Content: userContent.String()},
				},
				MaxTokens: maxTokens,
			}

			timeout := t.config.Timeout
			if p.TimeoutMs != nil && *p.TimeoutMs > 0 {
				override := time.Duration(*p.TimeoutMs) * time.Millisecond
				if override < timeout {
					timeout = override
				}
			}
			chatCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if t.logger != nil {
				t.logger.Info("llm_task calling model", "model", modelCfg.Model, "prompt_len", len(prompt))
			}

			resp, err := provider.Chat(chatCtx, chatReq)
			if err != nil {
				return nil, fmt.Errorf("nested model call failed: %v", err)
			}

			raw := strings.TrimSpace(resp.Message.Content)
			if raw == "" {
				return nil, fmt.Errorf("model returned empty output")
			}
			raw = stripCodeFences(raw)

			var parsed any
			if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
				return nil, fmt.Errorf("model returned invalid JSON: %v\nRaw output: %s", err, truncate(raw, 500))
			}

			if len(p.Schema) > 0 && !bytes.Equal(p.Schema, []byte("null")) {
				if err := validateAgainstSchema(p.Schema, parsed); err != nil {
					return nil, fmt.Errorf("model JSON did not match schema: %v", err)
				}
			}

			formatted, err := json.MarshalIndent(parsed, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("format JSON: %v", err)
			}
			return TextResult(string(formatted)), nil
		},
	)
}

func (t *LLMTaskTool) isModelAllowed(model string) bool {
	for _, allowed := range t.config.AllowedModels {
		if allowed == model {
			return true
		}
	}
	return false
}

// validateAgainstSchema validates parsed JSON against a caller-supplied
// JSON Schema.
func validateAgainstSchema(schemaBytes json.RawMessage, data any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("task-schema.json", bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := compiler.Compile("task-schema.json")
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	return schema.Validate(data)
}

// codeFenceRe matches a markdown code fence wrapping the whole output.
var codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")

// stripCodeFences removes a wrapping markdown fence if present.
func stripCodeFences(s string) string {
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}
