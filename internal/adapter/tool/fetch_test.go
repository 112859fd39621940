package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchToolGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		fmt.Fprint(w, "hello world")
	}))
	defer srv.Close()

	ft := NewFetchTool(testLogger())
	params, _ := json.Marshal(map[string]any{
		"url":     srv.URL,
		"headers": map[string]string{"User-Agent": "test-agent"},
	})

	result, err := ft.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError, result.Content)
	assert.Contains(t, result.Content, "HTTP 200")
	assert.Contains(t, result.Content, "hello world")
}

func TestFetchToolRejectsBadScheme(t *testing.T) {
	ft := NewFetchTool(testLogger())

	result, err := ft.Execute(context.Background(), json.RawMessage(`{"url":"file:///etc/passwd"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unsupported URL scheme")
}

func TestFetchToolRejectsBadMethod(t *testing.T) {
	ft := NewFetchTool(testLogger())

	result, err := ft.Execute(context.Background(), json.RawMessage(`{"url":"https://example.com","method":"POST"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "only GET and HEAD allowed")
}

func TestFetchToolRejectsCRLFHeaders(t *testing.T) {
	ft := NewFetchTool(testLogger())
	params, _ := json.Marshal(map[string]any{
		"url":     "https://example.com",
		"headers": map[string]string{"X-Bad": "a\r\nInjected: yes"},
	})

	result, err := ft.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "CRLF")
}

func TestFetchToolTruncatesLargeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for i := 0; i < 100; i++ {
			fmt.Fprint(w, "0123456789")
		}
	}))
	defer srv.Close()

	ft := NewFetchTool(testLogger())
	ft.maxBodySize = 100

	result, err := ft.Execute(context.Background(), json.RawMessage(`{"url":"`+srv.URL+`"}`))
	require.NoError(t, err)
	require.False(t, result.IsError)
	// "HTTP 200\n\n" prefix plus at most 100 body bytes.
	assert.LessOrEqual(t, len(result.Content), len("HTTP 200\n\n")+100)
}
