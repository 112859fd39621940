package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeYAML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadWithIncludes(t *testing.T, dir string, includes ...string) (*Config, error) {
	t.Helper()
	var b strings.Builder
	b.WriteString("includes:\n")
	for _, inc := range includes {
		fmt.Fprintf(&b, "  - %q\n", inc)
	}
	return Load(writeYAML(t, dir, "config.yaml", b.String()))
}

func TestIncludesMergeSplitConfig(t *testing.T) {
	// Credentials, pricing, and fallbacks split across include files, the
	// deployment layout includes are for.
	dir := t.TempDir()
	writeYAML(t, dir, "credentials.yaml", `
providers:
  anthropic:
    api_key: "sk-ant-split"
`)
	writeYAML(t, dir, "pricing.yaml", `
rates:
  input: 0.000003
  output: 0.000015
fallbacks:
  - model: "llama3.2"
`)

	cfg, err := loadWithIncludes(t, dir, "credentials.yaml", "pricing.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers["anthropic"].APIKey != "sk-ant-split" {
		t.Errorf("credentials include not merged: %+v", cfg.Providers)
	}
	if cfg.Rates.Output != 0.000015 {
		t.Errorf("rates include not merged: %+v", cfg.Rates)
	}
	if len(cfg.Fallbacks) != 1 || cfg.Fallbacks[0].Model != "llama3.2" {
		t.Errorf("fallbacks include not merged: %+v", cfg.Fallbacks)
	}
}

func TestIncludesGlobDirectory(t *testing.T) {
	dir := t.TempDir()
	confd := filepath.Join(dir, "conf.d")
	if err := os.Mkdir(confd, 0o755); err != nil {
		t.Fatal(err)
	}
	writeYAML(t, confd, "10-logger.yaml", "logger:\n  format: \"json\"\n")
	writeYAML(t, confd, "20-limits.yaml", "tools:\n  rate_limit:\n    enabled: true\n    calls_per_minute: 30\n    burst: 5\n")

	cfg, err := loadWithIncludes(t, dir, "conf.d/*.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logger.Format != "json" {
		t.Errorf("Logger.Format = %q, want json", cfg.Logger.Format)
	}
	if !cfg.Tools.RateLimit.Enabled || cfg.Tools.RateLimit.CallsPerMinute != 30 {
		t.Errorf("rate limit include not merged: %+v", cfg.Tools.RateLimit)
	}
}

func TestIncludesGlobMatchingNothingIsSkipped(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadWithIncludes(t, dir, "conf.d/*.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.MaxIterations != 10 {
		t.Errorf("defaults disturbed: %+v", cfg.Orchestrator)
	}
}

func TestIncludesLiteralMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	_, err := loadWithIncludes(t, dir, "absent.yaml")
	if err == nil {
		t.Fatal("expected error for missing literal include")
	}
}

func TestIncludesAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	shared := writeYAML(t, dir, "shared.yaml", "logger:\n  level: \"warn\"\n")

	cfg, err := loadWithIncludes(t, dir, shared)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q, want warn", cfg.Logger.Level)
	}
}

func TestIncludesMainFileWins(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "base.yaml", `
orchestrator:
  max_iterations: 50
  system_prompt: "base prompt"
`)
	path := writeYAML(t, dir, "config.yaml", `
includes:
  - "base.yaml"
orchestrator:
  max_iterations: 20
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.MaxIterations != 20 {
		t.Errorf("MaxIterations = %d, main file should win", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Orchestrator.SystemPrompt != "base prompt" {
		t.Errorf("SystemPrompt = %q, include value should survive where main is silent", cfg.Orchestrator.SystemPrompt)
	}
}

func TestIncludesNested(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "inner.yaml", "tools:\n  enabled: [\"calculator\"]\n")
	writeYAML(t, dir, "outer.yaml", `
includes:
  - "inner.yaml"
logger:
  level: "debug"
`)

	cfg, err := loadWithIncludes(t, dir, "outer.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Tools.Enabled) != 1 || cfg.Tools.Enabled[0] != "calculator" {
		t.Errorf("nested include not merged: %+v", cfg.Tools.Enabled)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("outer include not merged: %q", cfg.Logger.Level)
	}
}

func TestIncludesCycleDetected(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "a.yaml", "includes:\n  - \"b.yaml\"\n")
	writeYAML(t, dir, "b.yaml", "includes:\n  - \"a.yaml\"\n")

	_, err := loadWithIncludes(t, dir, "a.yaml")
	if err == nil || !strings.Contains(err.Error(), "circular include") {
		t.Fatalf("expected circular include error, got %v", err)
	}
}

func TestIncludesSelfReferenceDetected(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "config.yaml", "includes:\n  - \"config.yaml\"\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "circular include") {
		t.Fatalf("expected circular include error, got %v", err)
	}
}

func TestIncludesDepthBounded(t *testing.T) {
	dir := t.TempDir()
	levels := maxIncludeDepth + 2
	for i := levels; i >= 1; i-- {
		content := ""
		if i < levels {
			content = fmt.Sprintf("includes:\n  - %q\n", fmt.Sprintf("level%d.yaml", i+1))
		}
		writeYAML(t, dir, fmt.Sprintf("level%d.yaml", i), content)
	}

	_, err := loadWithIncludes(t, dir, "level1.yaml")
	if err == nil || !strings.Contains(err.Error(), "max depth") {
		t.Fatalf("expected max depth error, got %v", err)
	}
}

func TestIncludesRelativeEscapeRejected(t *testing.T) {
	dir := t.TempDir()
	_, err := loadWithIncludes(t, dir, "../../../etc/passwd")
	if err == nil {
		t.Fatal("expected error for escaping include path")
	}
	if !strings.Contains(err.Error(), "escapes") {
		t.Errorf("error should name the escape: %v", err)
	}
}

func TestIncludesInsecurePermissionsRejected(t *testing.T) {
	dir := t.TempDir()
	loose := filepath.Join(dir, "loose.yaml")
	if err := os.WriteFile(loose, []byte("logger:\n  level: debug\n"), 0o666); err != nil {
		t.Fatal(err)
	}
	// WriteFile's mode is narrowed by the process umask; force the intended mode.
	if err := os.Chmod(loose, 0o666); err != nil {
		t.Fatal(err)
	}

	_, err := loadWithIncludes(t, dir, "loose.yaml")
	if err == nil || !strings.Contains(err.Error(), "insecure permissions") {
		t.Fatalf("expected permissions error, got %v", err)
	}
}

func TestIncludesInvalidYAMLReported(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "broken.yaml", "tools: [enabled: bad")

	_, err := loadWithIncludes(t, dir, "broken.yaml")
	if err == nil {
		t.Fatal("expected parse error for broken include")
	}
	if !strings.Contains(err.Error(), "broken.yaml") {
		t.Errorf("error should name the broken file: %v", err)
	}
}

func TestIncludesEmptyFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "empty.yaml", "")

	cfg, err := loadWithIncludes(t, dir, "empty.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.MaxIterations != 10 {
		t.Errorf("defaults disturbed by empty include: %+v", cfg.Orchestrator)
	}
}
