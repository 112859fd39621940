package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"ensemble-ai/internal/domain"
	"ensemble-ai/internal/infra/tracer"
	"ensemble-ai/internal/usecase/cost"
)

const defaultMaxIterations = 10

// OrchestratorConfig holds the per-session knobs.
type OrchestratorConfig struct {
	Model         domain.ModelConfig
	SystemPrompt  string
	MaxIterations int
	Budget        domain.Budget
	Params        map[string]any
}

// OrchestratorDeps holds injected dependencies for the orchestrator.
type OrchestratorDeps struct {
	Gateway domain.ModelGateway
	Tools   ToolRegistry
	Tracker *cost.Tracker
	Counter domain.TokenCounter // optional, estimates usage when the provider reports none
	Logger  *slog.Logger

	// NewToolRegistry builds a fresh registry for child orchestrators
	// spawned by prompt-based strategies.
	NewToolRegistry func() ToolRegistry
}

// Orchestrator drives the iterate-generate-tool-call loop for one session.
// It owns its message history, cost tracker, and tool registry between
// Execute calls; a single instance is not safe for concurrent Execute.
type Orchestrator struct {
	cfg  OrchestratorConfig
	deps OrchestratorDeps

	strategy Strategy
	custom   CustomLogicFunc

	messages   []domain.Message
	iterations int
}

// NewOrchestrator creates an orchestrator session.
func NewOrchestrator(cfg OrchestratorConfig, deps OrchestratorDeps) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if deps.Tracker == nil {
		deps.Tracker = cost.NewTracker(cost.Rates{})
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// SetStrategy installs a strategy; Execute delegates to it instead of
// running the default loop. Pass nil to uninstall.
func (o *Orchestrator) SetStrategy(s Strategy) { o.strategy = s }

// SetCustomLogic installs a raw custom-logic override. It takes precedence
// over an installed strategy. Pass nil to uninstall.
func (o *Orchestrator) SetCustomLogic(fn CustomLogicFunc) { o.custom = fn }

// AddTool registers a tool with the live registry.
func (o *Orchestrator) AddTool(t domain.Tool) error { return o.deps.Tools.Register(t) }

// RemoveTool unregisters a tool.
func (o *Orchestrator) RemoveTool(name string) error { return o.deps.Tools.Remove(name) }

// SwitchModel swaps the model descriptor. History is untouched.
func (o *Orchestrator) SwitchModel(model domain.ModelConfig) { o.cfg.Model = model }

// Reset drops the conversation and per-session accounting but keeps the
// system prompt and the registered tools.
func (o *Orchestrator) Reset() {
	o.messages = nil
	o.iterations = 0
	o.deps.Tools.Reset()
	o.deps.Tracker.Reset()
}

// Clear is Reset plus dropping the system prompt.
func (o *Orchestrator) Clear() {
	o.Reset()
	o.cfg.SystemPrompt = ""
}

// History returns a copy of the accumulated conversation.
func (o *Orchestrator) History() []domain.Message {
	out := make([]domain.Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// Iterations returns the iteration count of the most recent execution.
func (o *Orchestrator) Iterations() int { return o.iterations }

// Totals returns the session's running cost totals.
func (o *Orchestrator) Totals() cost.Totals { return o.deps.Tracker.Totals() }

// Execute runs one execution on free-text input. It never returns a Go
// error: every failure mode converges on a failed ExecutionResult carrying
// partial progress.
func (o *Orchestrator) Execute(ctx context.Context, input string) *domain.ExecutionResult {
	return o.ExecuteMessages(ctx, []domain.Message{{
		Role:      domain.RoleUser,
		Content:   input,
		Timestamp: time.Now(),
	}})
}

// ExecuteMessages runs one execution on a pre-built message slice. A leading
// system message overrides the stored system prompt for this call only.
func (o *Orchestrator) ExecuteMessages(ctx context.Context, input []domain.Message) *domain.ExecutionResult {
	id := ulid.Make().String()

	ctx, span := tracer.StartSpan(ctx, "orchestrator.execute",
		trace.WithAttributes(
			tracer.StringAttr("execution.id", id),
			tracer.StringAttr("model", o.cfg.Model.Model),
		),
	)
	defer span.End()

	result := o.dispatch(ctx, id, input)

	o.iterations = result.Iterations
	if result.Success {
		tracer.SetOK(span)
	} else {
		span.AddEvent("execution.failed", trace.WithAttributes(tracer.StringAttr("error", result.Error)))
	}
	o.deps.Logger.Info("execution finished",
		"execution_id", id,
		"success", result.Success,
		"iterations", result.Iterations,
		"tools_used", len(result.ToolCallsUsed),
	)
	return result
}

// dispatch picks the execution path: custom-logic override, installed
// strategy, or the default loop.
func (o *Orchestrator) dispatch(ctx context.Context, id string, input []domain.Message) *domain.ExecutionResult {
	if o.custom != nil {
		octx := o.buildContext()
		result := runCustomLogic(ctx, o.custom, flattenInput(input), octx)
		result.ID = id
		return result
	}

	if o.strategy != nil {
		octx := o.buildContext()
		result := o.strategy.Execute(ctx, flattenInput(input), octx)
		if result == nil {
			result = failedResult(id, fmt.Errorf("strategy %q returned no result", o.strategy.Info().ID), nil, 0, nil)
		}
		result.ID = id
		return result
	}

	return o.runLoop(ctx, id, input)
}

// buildContext snapshots the orchestrator for strategy delegation.
func (o *Orchestrator) buildContext() *OrchestratorContext {
	return &OrchestratorContext{
		Model:           o.cfg.Model,
		Tools:           o.deps.Tools.List(),
		Messages:        o.History(),
		Iterations:      o.iterations,
		MaxIterations:   o.cfg.MaxIterations,
		Budget:          o.cfg.Budget,
		Params:          o.cfg.Params,
		Gateway:         o.deps.Gateway,
		NewToolRegistry: o.deps.NewToolRegistry,
		Logger:          o.deps.Logger,
	}
}

// runLoop is the default generate-then-tool-use loop. Loop state threads
// through explicitly; the orchestrator's own history is updated only once,
// from the terminal state.
func (o *Orchestrator) runLoop(ctx context.Context, id string, input []domain.Message) *domain.ExecutionResult {
	systemPrompt := o.cfg.SystemPrompt
	overridden := false
	for _, m := range input {
		if m.Role == domain.RoleSystem {
			if !overridden {
				systemPrompt = m.Content
				overridden = true
			}
			continue
		}
		o.messages = append(o.messages, m)
	}

	st := newLoopState(o.messages)

	finish := func(success bool, resultText string, err error) *domain.ExecutionResult {
		o.messages = st.messages
		if success {
			return successResult(id, resultText, st, o.deps.Tools.UsedTools())
		}
		result := failedResult(id, err, st.messages, st.iterations, o.deps.Tools.UsedTools())
		usage := st.usage
		result.Usage = &usage
		result.Stats = st.stats()
		return result
	}

	provider, err := o.deps.Gateway.Resolve(o.cfg.Model)
	if err != nil {
		return finish(false, "", fmt.Errorf("resolve model %q: %w", o.cfg.Model.Model, err))
	}

	for i := 0; i < o.cfg.MaxIterations; i++ {
		if violations := o.deps.Tracker.Violations(o.cfg.Budget); len(violations) > 0 {
			return finish(false, "", &domain.BudgetError{Violations: violations})
		}

		resp, callDuration, err := o.generate(ctx, provider, st.messages, systemPrompt, i)
		if err != nil {
			return finish(false, "", fmt.Errorf("provider %q: %w", provider.Name(), err))
		}

		if resp.Usage.TotalTokens == 0 && o.deps.Counter != nil {
			resp.Usage = o.estimateUsage(st.messages, resp.Message.Content)
		}
		o.deps.Tracker.RecordUsage(resp.Usage)
		st = st.withGeneration(resp, callDuration)

		assistant := resp.Message
		assistant.Role = domain.RoleAssistant
		if assistant.Timestamp.IsZero() {
			assistant.Timestamp = time.Now()
		}
		st = st.withMessage(assistant)

		if len(assistant.ToolCalls) == 0 {
			return finish(true, assistant.Content, nil)
		}

		st = o.runToolCalls(ctx, st, assistant.ToolCalls)
	}

	return finish(false, "", domain.NewDomainError("Orchestrator.Execute", domain.ErrMaxIterations,
		fmt.Sprintf("%d iterations", o.cfg.MaxIterations)))
}

// generate performs one model turn.
func (o *Orchestrator) generate(ctx context.Context, provider domain.LLMProvider, msgs []domain.Message, system string, iteration int) (*domain.ChatResponse, time.Duration, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.generate",
		trace.WithAttributes(tracer.IntAttr("iteration", iteration)),
	)
	defer span.End()

	req := domain.ChatRequest{
		Model:       o.cfg.Model.Model,
		Messages:    msgs,
		System:      system,
		Tools:       o.deps.Tools.Schemas(),
		MaxTokens:   o.cfg.Model.MaxTokens,
		Temperature: o.cfg.Model.Temperature,
		TopP:        o.cfg.Model.TopP,
	}

	start := time.Now()
	resp, err := provider.Chat(ctx, req)
	duration := time.Since(start)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, duration, err
	}
	tracer.SetOK(span)
	return resp, duration, nil
}

// runToolCalls executes the model's tool calls in parallel and folds the
// results into the state in the order the model requested them. Tool
// failures become error-content tool messages; they never abort the loop.
func (o *Orchestrator) runToolCalls(ctx context.Context, st loopState, calls []domain.ToolCall) loopState {
	type outcome struct {
		msg      domain.Message
		duration time.Duration
	}

	outcomes := make([]outcome, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c domain.ToolCall) {
			defer wg.Done()
			start := time.Now()
			msg := o.executeToolCall(ctx, c)
			outcomes[idx] = outcome{msg: msg, duration: time.Since(start)}
		}(i, call)
	}
	wg.Wait()

	for _, out := range outcomes {
		st = st.withMessage(out.msg).withToolSample(out.duration)
	}
	return st
}

// executeToolCall runs a single tool call and returns the tool-role message
// carrying its result or error text.
func (o *Orchestrator) executeToolCall(ctx context.Context, call domain.ToolCall) domain.Message {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.tool_call",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	o.deps.Tracker.RecordToolCall(0)

	msg := domain.Message{
		Role:       domain.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Timestamp:  time.Now(),
	}

	result, err := o.deps.Tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		tracer.RecordError(span, err)
		o.deps.Logger.Warn("tool call failed", "tool", call.Name, "error", err)
		msg.Content = "Error: " + err.Error()
		return msg
	}

	tracer.SetOK(span)
	msg.Content = result.Content
	if result.IsError {
		msg.Content = "Error: " + result.Content
	}
	return msg
}

// estimateUsage approximates a usage block via the token counter.
func (o *Orchestrator) estimateUsage(prompt []domain.Message, completion string) domain.Usage {
	in := o.deps.Counter.CountMessages(prompt)
	out := o.deps.Counter.Count(completion)
	return domain.Usage{
		PromptTokens:     in,
		CompletionTokens: out,
		TotalTokens:      in + out,
	}
}

// flattenInput renders a message slice back to a single input string for
// strategy delegation. The last user message wins; strategies that need the
// full history read it from the context snapshot.
func flattenInput(input []domain.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i].Role == domain.RoleUser {
			return input[i].Content
		}
	}
	if len(input) > 0 {
		return input[len(input)-1].Content
	}
	return ""
}

// successResult assembles the terminal result of a successful run.
func successResult(id, text string, st loopState, usedTools []string) *domain.ExecutionResult {
	usage := st.usage
	return &domain.ExecutionResult{
		ID:            id,
		Success:       true,
		Result:        text,
		Messages:      st.messages,
		Iterations:    st.iterations,
		Usage:         &usage,
		ToolCallsUsed: usedTools,
		Stats:         st.stats(),
	}
}

// failedResult assembles a failed result carrying partial progress.
func failedResult(id string, err error, messages []domain.Message, iterations int, usedTools []string) *domain.ExecutionResult {
	errMsg := "execution failed"
	if err != nil {
		errMsg = err.Error()
	}
	return &domain.ExecutionResult{
		ID:            id,
		Success:       false,
		Error:         errMsg,
		Messages:      messages,
		Iterations:    iterations,
		ToolCallsUsed: usedTools,
	}
}
