package usecase

import (
	"time"

	"ensemble-ai/internal/domain"
)

// loopState carries everything one loop iteration needs from the previous
// one: the conversation so far, counters, and raw timing samples. Each step
// produces the next state from the prior state, so the iteration logic stays
// a pure function of its inputs and the Orchestrator is just a shell holding
// the latest state between Execute calls.
type loopState struct {
	messages    []domain.Message
	iterations  int
	usage       domain.Usage
	startedAt   time.Time
	stepTimes   []time.Duration
	toolTimes   []time.Duration
	lastContent string
}

// newLoopState seeds a state from existing history. The history slice is
// copied so steps can append without aliasing the orchestrator's buffer.
func newLoopState(history []domain.Message) loopState {
	st := loopState{
		messages:  make([]domain.Message, len(history)),
		startedAt: time.Now(),
	}
	copy(st.messages, history)
	return st
}

// withMessage returns the state with one message appended.
func (st loopState) withMessage(m domain.Message) loopState {
	st.messages = append(st.messages, m)
	return st
}

// withGeneration folds one provider response into the state: the iteration
// counter advances, usage accumulates, and the response's step events become
// timing samples. A provider that reports no step events counts as a single
// step spanning the whole call.
func (st loopState) withGeneration(resp *domain.ChatResponse, callDuration time.Duration) loopState {
	st.iterations++
	st.usage.Add(resp.Usage)

	if len(resp.Steps) == 0 {
		st.stepTimes = append(st.stepTimes, callDuration)
		return st
	}
	for _, step := range resp.Steps {
		st.stepTimes = append(st.stepTimes, step.Duration)
	}
	return st
}

// withToolSample records the duration of one tool call.
func (st loopState) withToolSample(d time.Duration) loopState {
	st.toolTimes = append(st.toolTimes, d)
	return st
}

// stats derives the execution statistics from the collected samples.
func (st loopState) stats() *domain.ExecutionStats {
	s := &domain.ExecutionStats{
		TotalDuration:     time.Since(st.startedAt),
		StepsExecuted:     len(st.stepTimes),
		ToolCallsExecuted: len(st.toolTimes),
	}
	if n := len(st.stepTimes); n > 0 {
		var total time.Duration
		for _, d := range st.stepTimes {
			total += d
		}
		s.AverageStepDuration = total / time.Duration(n)
	}
	if n := len(st.toolTimes); n > 0 {
		var total time.Duration
		for _, d := range st.toolTimes {
			total += d
		}
		s.AverageToolCallDuration = total / time.Duration(n)
	}
	return s
}
