package domain

import "time"

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message in a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ChatRequest is sent to an LLM provider.
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	System      string       `json:"system,omitempty"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	TopP        float64      `json:"top_p,omitempty"`
}

// ChatResponse is returned from an LLM provider.
type ChatResponse struct {
	ID           string      `json:"id"`
	Model        string      `json:"model"`
	Message      Message     `json:"message"`
	Usage        Usage       `json:"usage"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Steps        []StepEvent `json:"steps,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// StepEvent describes one internal reasoning step of a generation call.
// Providers that expose multi-step generation report one event per step;
// single-shot providers report none and the caller counts the whole call
// as one step. Consumers fold these into execution statistics.
type StepEvent struct {
	Index     int           `json:"index"`
	ToolCalls int           `json:"tool_calls"`
	Duration  time.Duration `json:"duration"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage block into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
