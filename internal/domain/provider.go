package domain

import "context"

// LLMProvider is the interface for any LLM backend.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "openai", "anthropic").
	Name() string
}

// ModelGateway resolves a model descriptor into a callable provider.
// Provider selection (explicit or auto-detected from model id patterns)
// is opaque to callers.
type ModelGateway interface {
	Resolve(model ModelConfig) (LLMProvider, error)
}

// TokenCounter estimates token counts for budget accounting when a provider
// response carries no usage block.
type TokenCounter interface {
	Count(text string) int
	CountMessages(msgs []Message) int
}

// Uploader publishes a rendered report and returns its public URL.
// Consumed by the multi-model synthesis helpers only.
type Uploader interface {
	UploadHTML(ctx context.Context, content, filename string) (string, error)
}
