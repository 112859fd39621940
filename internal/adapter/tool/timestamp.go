package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ensemble-ai/internal/domain"
)

// TimestampTool reports and converts times. The clock is injectable so tests
// stay deterministic.
type TimestampTool struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewTimestampTool creates a timestamp tool using the system clock.
func NewTimestampTool(logger *slog.Logger) *TimestampTool {
	return &TimestampTool{logger: logger, now: time.Now}
}

func (t *TimestampTool) Name() string { return "timestamp" }
func (t *TimestampTool) Description() string {
	return "Get the current time, or convert a Unix timestamp to a readable form."
}

func (t *TimestampTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]domain.ParamSpec{
			"action": {
				Type:        domain.ParamString,
				Required:    true,
				Enum:        []string{"now", "convert"},
				Description: "now returns the current time; convert formats a given Unix timestamp",
			},
			"unix": {
				Type:        domain.ParamNumber,
				Description: "Unix timestamp in seconds, required for convert",
			},
			"timezone": {
				Type:        domain.ParamString,
				Description: "IANA timezone name, e.g. America/New_York (default UTC)",
			},
		},
	}
}

type timestampParams struct {
	Action   string  `json:"action"`
	Unix     float64 `json:"unix,omitempty"`
	Timezone string  `json:"timezone,omitempty"`
}

type timestampResult struct {
	Unix     int64  `json:"unix"`
	RFC3339  string `json:"rfc3339"`
	Readable string `json:"readable"`
	Timezone string `json:"timezone"`
	Weekday  string `json:"weekday"`
}

func (t *TimestampTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.timestamp", t.logger, params,
		Dispatch(func(p timestampParams) string { return p.Action }, ActionMap[timestampParams]{
			"now":     t.handleNow,
			"convert": t.handleConvert,
		}),
	)
}

func (t *TimestampTool) handleNow(_ context.Context, p timestampParams) (any, error) {
	loc, err := resolveLocation(p.Timezone)
	if err != nil {
		return nil, err
	}
	return describeTime(t.now().In(loc)), nil
}

func (t *TimestampTool) handleConvert(_ context.Context, p timestampParams) (any, error) {
	if p.Unix == 0 {
		return nil, fmt.Errorf("'unix' is required for convert")
	}
	loc, err := resolveLocation(p.Timezone)
	if err != nil {
		return nil, err
	}
	return describeTime(time.Unix(int64(p.Unix), 0).In(loc)), nil
}

func resolveLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", name)
	}
	return loc, nil
}

func describeTime(ts time.Time) timestampResult {
	return timestampResult{
		Unix:     ts.Unix(),
		RFC3339:  ts.Format(time.RFC3339),
		Readable: ts.Format("Monday, January 2, 2006 at 3:04 PM"),
		Timezone: ts.Location().String(),
		Weekday:  ts.Weekday().String(),
	}
}
