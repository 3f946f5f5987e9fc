// internal/exclude/exclude.go
package exclude

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides whether a single path segment should be skipped
type Filter struct {
	patterns []pattern
}

type pattern struct {
	raw  string
	glob string // raw with every metacharacter but "*" and "?" escaped
}

// only "*" and "?" are wildcards; everything else is literal text
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`[`, `\[`,
	`]`, `\]`,
	`{`, `\{`,
	`}`, `\}`,
)

// New creates a filter from glob patterns ("*", "?" and literals).
// A nil or empty list matches nothing.
func New(patterns []string) *Filter {
	f := &Filter{patterns: make([]pattern, 0, len(patterns))}
	for _, p := range patterns {
		f.patterns = append(f.patterns, pattern{raw: p, glob: escaper.Replace(p)})
	}
	return f
}

// Matches reports whether name (a file or directory name, not a path)
// matches any of the patterns.
func (f *Filter) Matches(name string) bool {
	if f == nil {
		return false
	}
	for _, p := range f.patterns {
		if ok, err := doublestar.Match(p.glob, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the configured patterns
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.patterns))
	for i, p := range f.patterns {
		out[i] = p.raw
	}
	return out
}
