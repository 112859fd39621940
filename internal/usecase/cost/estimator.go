package cost

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"ensemble-ai/internal/domain"
)

// Per-message protocol overhead applied when counting conversation tokens.
// Mirrors the OpenAI chat format framing tokens.
const messageOverheadTokens = 4

// defaultEncoding is used when no encoding name is supplied.
const defaultEncoding = "cl100k_base"

// TiktokenCounter estimates token counts using a BPE encoding. Used for
// budget accounting when a provider response carries no usage block.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter for the named encoding
// ("cl100k_base" when empty).
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("get encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the token count for a single text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// CountMessages returns the token count for a conversation, including
// per-message framing overhead.
func (c *TiktokenCounter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.Count(m.Content) + messageOverheadTokens
	}
	return total
}

// HeuristicCounter approximates tokens as len/4. It is the fallback when a
// BPE encoding cannot be loaded (e.g. offline environments).
type HeuristicCounter struct{}

// Count returns the approximate token count for a single text.
func (HeuristicCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// CountMessages returns the approximate token count for a conversation.
func (h HeuristicCounter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += h.Count(m.Content) + messageOverheadTokens
	}
	return total
}

// NewCounter returns a tiktoken-backed counter, falling back to the
// heuristic counter when the encoding is unavailable.
func NewCounter(encoding string) domain.TokenCounter {
	if c, err := NewTiktokenCounter(encoding); err == nil {
		return c
	}
	return HeuristicCounter{}
}

// Compile-time interface checks.
var (
	_ domain.TokenCounter = (*TiktokenCounter)(nil)
	_ domain.TokenCounter = HeuristicCounter{}
)
