package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ensemble-ai/internal/domain"
)

// ListIssuesOpts controls issue listing.
type ListIssuesOpts struct {
	State   string `json:"state,omitempty"` // "open", "closed", "all"
	Page    int    `json:"page,omitempty"`
	PerPage int    `json:"per_page,omitempty"`
}

// GitHubIssue describes a GitHub issue.
type GitHubIssue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

// SearchCodeOpts controls code search.
type SearchCodeOpts struct {
	Page    int `json:"page,omitempty"`
	PerPage int `json:"per_page,omitempty"`
}

// GitHubCodeResult describes a code search hit.
type GitHubCodeResult struct {
	Repository string `json:"repository"`
	Path       string `json:"path"`
	HTMLURL    string `json:"html_url"`
}

// GitHubBackend abstracts the GitHub API operations the tool exposes.
type GitHubBackend interface {
	ListIssues(ctx context.Context, owner, repo string, opts ListIssuesOpts) ([]GitHubIssue, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*GitHubIssue, error)
	SearchCode(ctx context.Context, query string, opts SearchCodeOpts) ([]GitHubCodeResult, error)
}

// MockGitHubBackend is a no-op backend for testing and development.
type MockGitHubBackend struct{}

func (MockGitHubBackend) ListIssues(_ context.Context, _, _ string, _ ListIssuesOpts) ([]GitHubIssue, error) {
	return nil, nil
}
func (MockGitHubBackend) GetIssue(_ context.Context, _, _ string, _ int) (*GitHubIssue, error) {
	return nil, fmt.Errorf("not found")
}
func (MockGitHubBackend) SearchCode(_ context.Context, _ string, _ SearchCodeOpts) ([]GitHubCodeResult, error) {
	return nil, nil
}

// HTTPGitHubBackend talks to the real GitHub REST API.
type HTTPGitHubBackend struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewHTTPGitHubBackend creates a backend using api.github.com. The token may
// be empty for public, unauthenticated access.
func NewHTTPGitHubBackend(token string) *HTTPGitHubBackend {
	return &HTTPGitHubBackend{
		token:   token,
		baseURL: "https://api.github.com",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *HTTPGitHubBackend) get(ctx context.Context, path string, query url.Values, out any) error {
	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
	if err != nil {
		return fmt.Errorf("read github response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimit
	case resp.StatusCode >= 400:
		return fmt.Errorf("github API returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}

func (b *HTTPGitHubBackend) ListIssues(ctx context.Context, owner, repo string, opts ListIssuesOpts) ([]GitHubIssue, error) {
	q := url.Values{}
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	var issues []GitHubIssue
	if err := b.get(ctx, "/repos/"+owner+"/"+repo+"/issues", q, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (b *HTTPGitHubBackend) GetIssue(ctx context.Context, owner, repo string, number int) (*GitHubIssue, error) {
	var issue GitHubIssue
	path := "/repos/" + owner + "/" + repo + "/issues/" + strconv.Itoa(number)
	if err := b.get(ctx, path, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (b *HTTPGitHubBackend) SearchCode(ctx context.Context, query string, opts SearchCodeOpts) ([]GitHubCodeResult, error) {
	q := url.Values{"q": {query}}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	var payload struct {
		Items []struct {
			Path       string `json:"path"`
			HTMLURL    string `json:"html_url"`
			Repository struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
		} `json:"items"`
	}
	if err := b.get(ctx, "/search/code", q, &payload); err != nil {
		return nil, err
	}
	results := make([]GitHubCodeResult, 0, len(payload.Items))
	for _, item := range payload.Items {
		results = append(results, GitHubCodeResult{
			Repository: item.Repository.FullName,
			Path:       item.Path,
			HTMLURL:    item.HTMLURL,
		})
	}
	return results, nil
}

// GitHubTool provides read-only GitHub operations to the model.
type GitHubTool struct {
	backend GitHubBackend
	logger  *slog.Logger
}

// NewGitHubTool creates a GitHub tool. If backend is nil, a MockGitHubBackend
// is used.
func NewGitHubTool(backend GitHubBackend, logger *slog.Logger) *GitHubTool {
	if backend == nil {
		backend = MockGitHubBackend{}
	}
	return &GitHubTool{backend: backend, logger: logger}
}

func (t *GitHubTool) Name() string { return "github" }
func (t *GitHubTool) Description() string {
	return "Look up GitHub issues and search code across repositories."
}

func (t *GitHubTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]domain.ParamSpec{
			"action": {
				Type:        domain.ParamString,
				Required:    true,
				Enum:        []string{"list_issues", "get_issue", "search_code"},
				Description: "The GitHub action to perform",
			},
			"owner":    {Type: domain.ParamString, Description: "Repository owner (org or user)"},
			"repo":     {Type: domain.ParamString, Description: "Repository name"},
			"number":   {Type: domain.ParamNumber, Description: "Issue number"},
			"query":    {Type: domain.ParamString, Description: "Search query for code search"},
			"state":    {Type: domain.ParamString, Enum: []string{"open", "closed", "all"}, Description: "Filter issues by state"},
			"page":     {Type: domain.ParamNumber, Description: "Page number for pagination"},
			"per_page": {Type: domain.ParamNumber, Description: "Results per page"},
		},
	}
}

type githubParams struct {
	Action  string `json:"action"`
	Owner   string `json:"owner,omitempty"`
	Repo    string `json:"repo,omitempty"`
	Number  int    `json:"number,omitempty"`
	Query   string `json:"query,omitempty"`
	State   string `json:"state,omitempty"`
	Page    int    `json:"page,omitempty"`
	PerPage int    `json:"per_page,omitempty"`
}

func (t *GitHubTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.github", t.logger, params,
		Dispatch(func(p githubParams) string { return p.Action }, ActionMap[githubParams]{
			"list_issues": t.handleListIssues,
			"get_issue":   t.handleGetIssue,
			"search_code": t.handleSearchCode,
		}),
	)
}

func (t *GitHubTool) requireRepo(p githubParams) error {
	return RequireFields("owner", p.Owner, "repo", p.Repo)
}

func (t *GitHubTool) handleListIssues(ctx context.Context, p githubParams) (any, error) {
	if err := t.requireRepo(p); err != nil {
		return nil, err
	}
	issues, err := t.backend.ListIssues(ctx, p.Owner, p.Repo, ListIssuesOpts{
		State: p.State, Page: p.Page, PerPage: p.PerPage,
	})
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return TextResult("No issues found."), nil
	}
	return issues, nil
}

func (t *GitHubTool) handleGetIssue(ctx context.Context, p githubParams) (any, error) {
	if err := t.requireRepo(p); err != nil {
		return nil, err
	}
	if p.Number <= 0 {
		return nil, fmt.Errorf("'number' is required and must be > 0")
	}
	return t.backend.GetIssue(ctx, p.Owner, p.Repo, p.Number)
}

func (t *GitHubTool) handleSearchCode(ctx context.Context, p githubParams) (any, error) {
	if err := RequireField("query", p.Query); err != nil {
		return nil, err
	}
	results, err := t.backend.SearchCode(ctx, p.Query, SearchCodeOpts{
		Page: p.Page, PerPage: p.PerPage,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return TextResult("No code results found."), nil
	}
	return results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
