package tracing

import (
	"path"
	"strings"

	"github.com/GriffinCanCode/tracekit/config"
	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which request paths are not traced.
//
// Paths match exactly or as doublestar globs ("/internal/**"), prefixes
// match with strings.HasPrefix, and extensions compare case-insensitively
// with or without the leading dot.
type Filter struct {
	paths      []string
	prefixes   []string
	extensions map[string]struct{}
}

// NewFilter builds a filter from the ignore rules.
func NewFilter(rules config.IgnoreConfig) *Filter {
	f := &Filter{
		paths:      append([]string(nil), rules.Paths...),
		prefixes:   append([]string(nil), rules.Prefixes...),
		extensions: make(map[string]struct{}, len(rules.Extensions)),
	}
	for _, ext := range rules.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = struct{}{}
	}
	return f
}

// Ignore reports whether requests for p should not be traced.
func (f *Filter) Ignore(p string) bool {
	if f == nil {
		return false
	}

	for _, pattern := range f.paths {
		if pattern == p {
			return true
		}
		// Invalid patterns never match
		if matched, err := doublestar.Match(pattern, p); err == nil && matched {
			return true
		}
	}

	for _, prefix := range f.prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}

	if len(f.extensions) > 0 {
		if _, ok := f.extensions[strings.ToLower(path.Ext(p))]; ok {
			return true
		}
	}
	return false
}
