package llm

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"ensemble-ai/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMapHTTPError(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"rate limited", 429, domain.ErrRateLimit},
		{"unauthorized", 401, domain.ErrAuthInvalid},
		{"forbidden", 403, domain.ErrAuthInvalid},
		{"payload too large", 413, domain.ErrContextOverflow},
		{"server error", 500, domain.ErrProviderError},
		{"bad gateway", 502, domain.ErrProviderError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapHTTPError(tc.status, []byte("detail"))
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Contains(t, err.Error(), "detail")
		})
	}
}

func TestMapHTTPErrorClientErrorNotSentinel(t *testing.T) {
	err := mapHTTPError(400, []byte("bad request"))
	assert.NotErrorIs(t, err, domain.ErrRateLimit)
	assert.NotErrorIs(t, err, domain.ErrProviderError)
	assert.Contains(t, err.Error(), "API error 400")
}

func TestMapHTTPErrorRetryability(t *testing.T) {
	assert.True(t, domain.IsRetryableError(mapHTTPError(429, nil)))
	assert.True(t, domain.IsRetryableError(mapHTTPError(503, nil)))
	assert.False(t, domain.IsRetryableError(mapHTTPError(401, nil)))
}
