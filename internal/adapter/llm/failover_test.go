package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-ai/internal/domain"
)

// stubProvider returns a scripted response or error and counts calls.
type stubProvider struct {
	name  string
	resp  *domain.ChatResponse
	err   error
	calls int
}

func (s *stubProvider) Chat(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubProvider) Name() string { return s.name }

func TestFailoverPrimarySucceeds(t *testing.T) {
	primary := &stubProvider{name: "a", resp: &domain.ChatResponse{Message: domain.Message{Content: "from a"}}}
	fallback := &stubProvider{name: "b", resp: &domain.ChatResponse{Message: domain.Message{Content: "from b"}}}
	f := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, testLogger())

	resp, err := f.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from a", resp.Message.Content)
	assert.Zero(t, fallback.calls)
}

func TestFailoverFallsBack(t *testing.T) {
	primary := &stubProvider{name: "a", err: errors.New("boom")}
	fallback := &stubProvider{name: "b", resp: &domain.ChatResponse{Message: domain.Message{Content: "from b"}}}
	f := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, testLogger())

	resp, err := f.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from b", resp.Message.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestFailoverAllFail(t *testing.T) {
	primary := &stubProvider{name: "a", err: errors.New("down")}
	fb1 := &stubProvider{name: "b", err: errors.New("also down")}
	fb2 := &stubProvider{name: "c", err: errors.New("worse")}
	f := NewFailoverProvider(primary, []domain.LLMProvider{fb1, fb2}, testLogger())

	_, err := f.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	assert.Contains(t, err.Error(), "a: down")
	assert.Contains(t, err.Error(), "b: also down")
	assert.Contains(t, err.Error(), "c: worse")
}

func TestFailoverName(t *testing.T) {
	f := NewFailoverProvider(&stubProvider{name: "a"}, nil, testLogger())
	assert.Equal(t, "a+failover", f.Name())
}
