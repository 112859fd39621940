package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 10

// includeMerger folds included YAML files into a Config. It tracks visited
// files to break cycles and bounds nesting depth.
type includeMerger struct {
	cfg     *Config
	visited map[string]bool
}

// processIncludes merges the files referenced by cfg.Includes into cfg.
// baseDir is the directory of the file that declared them.
func processIncludes(cfg *Config, baseDir string, visited map[string]bool, depth int) error {
	if visited == nil {
		visited = make(map[string]bool)
	}
	m := &includeMerger{cfg: cfg, visited: visited}
	return m.run(baseDir, depth)
}

func (m *includeMerger) run(baseDir string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("config includes: max depth %d exceeded", maxIncludeDepth)
	}

	patterns := m.cfg.Includes
	m.cfg.Includes = nil

	for _, pattern := range patterns {
		files, err := expandIncludePattern(pattern, baseDir)
		if err != nil {
			return err
		}
		for _, file := range files {
			if err := m.merge(file, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

// merge overlays one included file onto the config, then recurses into any
// includes that file declares.
func (m *includeMerger) merge(path string, depth int) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config includes: resolve %q: %w", path, err)
	}
	if m.visited[abs] {
		return fmt.Errorf("config includes: circular include detected for %q", abs)
	}
	m.visited[abs] = true

	if err := validatePermissions(abs); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", abs, err)
	}
	if len(data) == 0 {
		return nil
	}

	// Only this file's includes may trigger recursion.
	m.cfg.Includes = nil
	if err := yaml.Unmarshal(data, m.cfg); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", abs, err)
	}
	if len(m.cfg.Includes) > 0 {
		return m.run(filepath.Dir(abs), depth+1)
	}
	return nil
}

// expandIncludePattern resolves one include entry against the declaring
// file's directory. Relative entries must stay inside that directory. A
// glob matching nothing is skipped; a literal path is kept so the read
// reports it missing.
func expandIncludePattern(pattern, baseDir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(baseDir, pattern)
	}
	pattern = filepath.Clean(pattern)

	if rel, err := filepath.Rel(baseDir, pattern); err == nil && strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	if len(matches) > 0 {
		return matches, nil
	}
	if strings.ContainsAny(pattern, "*?[") {
		return nil, nil
	}
	return []string{pattern}, nil
}
