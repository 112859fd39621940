// Package multiai provides reusable multi-model patterns built atop the
// custom-logic strategy: parallel fan-out with per-model timeout and retry,
// result consolidation, partial-failure assessment, data-dependent tool
// chains, and cross-model synthesis.
package multiai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"ensemble-ai/internal/domain"
	"ensemble-ai/internal/infra/tracer"
)

// Options tunes one parallel fan-out.
type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // per model; 0 = no timeout
	FailFast    bool          // first failure aborts the whole group
	RetryCount  int           // retries per failed model, not per batch
}

// Result is one model's outcome in a fan-out. The slice returned by
// RunInParallel is aligned with the input model order, not completion order.
type Result struct {
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Usage    domain.Usage  `json:"usage"`
}

// Runner issues parallel generation calls through a model gateway.
type Runner struct {
	gateway domain.ModelGateway
	logger  *slog.Logger
}

// NewRunner creates a fan-out runner.
func NewRunner(gateway domain.ModelGateway, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{gateway: gateway, logger: logger}
}

// RunInParallel sends the prompt to every model concurrently. With FailFast
// the first failure aborts the group and returns its error; otherwise every
// model gets a Result, success or failure, and no error is returned.
func (r *Runner) RunInParallel(ctx context.Context, prompt string, models []domain.ModelConfig, opts Options) ([]Result, error) {
	ctx, span := tracer.StartSpan(ctx, "multiai.run_parallel",
		trace.WithAttributes(tracer.IntAttr("models", len(models))),
	)
	defer span.End()

	if len(models) == 0 {
		return nil, domain.NewDomainError("multiai.RunInParallel", domain.ErrInvalidInput, "no models")
	}

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(models))
	firstErr := make(chan error, len(models))

	var wg sync.WaitGroup
	for i, model := range models {
		wg.Add(1)
		go func(idx int, m domain.ModelConfig) {
			defer wg.Done()
			res := r.runModel(groupCtx, prompt, m, opts)
			results[idx] = res
			if !res.Success && opts.FailFast {
				firstErr <- fmt.Errorf("model %q failed: %s", m.Model, res.Error)
				cancel()
			}
		}(i, model)
	}
	wg.Wait()

	if opts.FailFast {
		select {
		case err := <-firstErr:
			tracer.RecordError(span, err)
			return nil, err
		default:
		}
	}

	tracer.SetOK(span)
	return results, nil
}

// runModel runs one model's generation, retrying the failed model alone up
// to RetryCount times.
func (r *Runner) runModel(ctx context.Context, prompt string, model domain.ModelConfig, opts Options) Result {
	var res Result
	for attempt := 0; attempt <= opts.RetryCount; attempt++ {
		res = r.callOnce(ctx, prompt, model, opts)
		if res.Success || ctx.Err() != nil {
			return res
		}
		if attempt < opts.RetryCount {
			r.logger.Warn("model attempt failed, retrying",
				"model", model.Model, "attempt", attempt+1, "error", res.Error)
		}
	}
	return res
}

// callOnce performs a single generation call raced against the per-model
// timeout. A timeout marks this model's result failed without affecting the
// other models.
func (r *Runner) callOnce(ctx context.Context, prompt string, model domain.ModelConfig, opts Options) Result {
	start := time.Now()
	res := Result{Model: model.Model, Provider: model.Provider}

	provider, err := r.gateway.Resolve(model)
	if err != nil {
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res
	}
	if res.Provider == "" {
		res.Provider = provider.Name()
	}

	req := domain.ChatRequest{
		Model:       model.Model,
		Messages:    []domain.Message{{Role: domain.RoleUser, Content: prompt, Timestamp: start}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	type outcome struct {
		resp *domain.ChatResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, chatErr := provider.Chat(ctx, req)
		done <- outcome{resp: resp, err: chatErr}
	}()

	var timeoutCh <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case out := <-done:
		res.Duration = time.Since(start)
		if out.err != nil {
			res.Error = out.err.Error()
			return res
		}
		res.Success = true
		res.Output = out.resp.Message.Content
		res.Usage = out.resp.Usage
		return res
	case <-timeoutCh:
		res.Duration = time.Since(start)
		res.Error = domain.NewDomainError("multiai.callOnce", domain.ErrTimeout, model.Model).Error()
		return res
	case <-ctx.Done():
		res.Duration = time.Since(start)
		res.Error = ctx.Err().Error()
		return res
	}
}
