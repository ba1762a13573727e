package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/bucketnav/pkg/browse"
)

var (
	// ErrNoIncludes is returned when no include pattern is given.
	ErrNoIncludes = errors.New("at least one include pattern is required")

	// ErrInvalidPattern is returned for a pattern doublestar rejects.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// PatternError names the offending pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Config configures a Matcher.
type Config struct {
	// Includes: a key must match at least one.
	Includes []string

	// Excludes: a key must match none.
	Excludes []string

	// IncludeHidden lets keys with a dot-segment match.
	IncludeHidden bool
}

// Matcher is safe for concurrent use. It satisfies browse.KeyMatcher.
type Matcher struct {
	includes      []string
	excludes      []string
	includeHidden bool
}

var _ browse.KeyMatcher = (*Matcher)(nil)

// New compiles cfg.
func New(cfg Config) (*Matcher, error) {
	if len(cfg.Includes) == 0 {
		return nil, ErrNoIncludes
	}
	includes, err := compile(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compile(cfg.Excludes)
	if err != nil {
		return nil, err
	}
	return &Matcher{includes: includes, excludes: excludes, includeHidden: cfg.IncludeHidden}, nil
}

// Glob is shorthand for a matcher with one include pattern.
func Glob(pattern string) (*Matcher, error) {
	return New(Config{Includes: []string{pattern}})
}

func compile(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		n := NormalizePattern(p)
		if !doublestar.ValidatePattern(n) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
		out = append(out, n)
	}
	return out, nil
}

// Match reports whether key is selected.
//
// Folder keys are also tried without their trailing "/", so "logs/*"
// matches both "logs/a.txt" and "logs/2024/".
func (m *Matcher) Match(key string) bool {
	if !m.includeHidden && IsHidden(strings.TrimSuffix(key, browse.Delimiter)) {
		return false
	}
	if !anyMatch(m.includes, key) {
		return false
	}
	return !anyMatch(m.excludes, key)
}

// Patterns returns the normalized include patterns.
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.includes))
	copy(out, m.includes)
	return out
}

func anyMatch(patterns []string, key string) bool {
	bare := strings.TrimSuffix(key, browse.Delimiter)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, key); ok {
			return true
		}
		if bare != key {
			if ok, _ := doublestar.Match(p, bare); ok {
				return true
			}
		}
	}
	return false
}
