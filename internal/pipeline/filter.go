package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Filter matches paths against glob patterns. A path is ignored when any of
// its elements matches a pattern.
type Filter struct {
	patterns []string
}

func NewFilter(patterns []string) (*Filter, error) {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
	}
	return &Filter{patterns: patterns}, nil
}

func (f *Filter) Ignore(path string) bool {
	if f == nil || len(f.patterns) == 0 {
		return false
	}
	return shouldIgnore(path, f.patterns)
}

func shouldIgnore(path string, ignoreList []string) bool {
	parts := strings.Split(filepath.ToSlash(path), "/")

	for _, part := range parts {
		for _, pattern := range ignoreList {
			matched, err := filepath.Match(pattern, part)
			if err == nil && matched {
				return true
			}
		}
	}

	return false
}
