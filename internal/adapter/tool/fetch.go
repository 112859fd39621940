package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"ensemble-ai/internal/domain"
)

const defaultMaxBodySize = 1 * 1024 * 1024 // 1MB

// FetchTool retrieves content from HTTP(S) URLs for the model.
type FetchTool struct {
	client      *http.Client
	maxBodySize int64
	logger      *slog.Logger
}

// NewFetchTool creates a web fetch tool with a bounded client.
func NewFetchTool(logger *slog.Logger) *FetchTool {
	return &FetchTool{
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return validateFetchURL(req.URL.String())
			},
		},
		maxBodySize: defaultMaxBodySize,
		logger:      logger,
	}
}

func (t *FetchTool) Name() string        { return "web_fetch" }
func (t *FetchTool) Description() string { return "Fetch content from an HTTP or HTTPS URL" }

func (t *FetchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]domain.ParamSpec{
			"url":    {Type: domain.ParamString, Required: true, Description: "The URL to fetch"},
			"method": {Type: domain.ParamString, Enum: []string{"GET", "HEAD"}, Description: "HTTP method (default GET)"},
			"headers": {
				Type:        domain.ParamObject,
				Description: "Additional HTTP headers as a string map",
			},
		},
	}
}

type fetchParams struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (t *FetchTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.web_fetch", t.logger, params,
		func(ctx context.Context, span trace.Span, p fetchParams) (any, error) {
			if err := validateFetchURL(p.URL); err != nil {
				return nil, err
			}

			method := p.Method
			if method == "" {
				method = http.MethodGet
			}
			if method != http.MethodGet && method != http.MethodHead {
				return nil, fmt.Errorf("invalid HTTP method: %q (only GET and HEAD allowed)", method)
			}

			req, err := http.NewRequestWithContext(ctx, method, p.URL, nil)
			if err != nil {
				return nil, fmt.Errorf("create request: %v", err)
			}
			for k, v := range p.Headers {
				if containsCRLF(k) || containsCRLF(v) {
					return nil, fmt.Errorf("invalid header: CRLF characters not allowed")
				}
				req.Header.Set(k, v)
			}

			resp, err := t.client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("http request: %v", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize))
			if err != nil {
				return nil, fmt.Errorf("read body: %v", err)
			}

			if t.logger != nil {
				t.logger.Debug("web fetch completed", "url", p.URL, "status", resp.StatusCode, "size", len(body))
			}
			return fmt.Sprintf("HTTP %d\n\n%s", resp.StatusCode, string(body)), nil
		},
	)
}

// validateFetchURL rejects non-HTTP schemes and URLs without a host.
func validateFetchURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// containsCRLF reports whether a string carries CRLF characters usable for
// header injection.
func containsCRLF(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
