// Package match selects listing keys with doublestar glob patterns.
package match

import (
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/bucketnav/pkg/browse"
)

// ErrMultiLevel is returned for a pattern with glob characters above its
// last segment. Selections are bounded by one listing, so only the last
// segment may vary.
var ErrMultiLevel = errors.New("glob characters are only allowed in the last segment")

// Metacharacters a backslash can escape.
const escapable = `*?[]{}\`

// NormalizePattern turns unescaped backslashes into "/" so Windows-style
// input works. Escapes of glob metacharacters are kept.
//
//	`logs\2024\*.gz`  -> "logs/2024/*.gz"
//	`logs/file\*.txt` -> `logs/file\*.txt`
func NormalizePattern(pattern string) string {
	if !strings.ContainsRune(pattern, '\\') {
		return pattern
	}
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(pattern) && strings.IndexByte(escapable, pattern[i+1]) >= 0 {
			b.WriteByte(c)
			b.WriteByte(pattern[i+1])
			i++
			continue
		}
		b.WriteByte('/')
	}
	return b.String()
}

// IsGlobPattern reports whether pattern has an unescaped * ? [ or {.
func IsGlobPattern(pattern string) bool {
	return firstMeta(pattern) >= 0
}

// SplitLevel returns the listing prefix a pattern selects from.
//
//	"logs/*.log"  -> "logs/"
//	"*.txt"       -> ""
//	"logs/app-*/" -> "logs/"
//	"a/*/b.txt"   -> ErrMultiLevel
//
// A pattern without glob characters splits like a plain key.
func SplitLevel(pattern string) (browse.Prefix, error) {
	pattern = NormalizePattern(pattern)
	body := strings.TrimSuffix(pattern, browse.Delimiter)
	cut := strings.LastIndex(body, browse.Delimiter)
	if cut < 0 {
		return browse.Root, nil
	}
	dir := body[:cut+1]
	if firstMeta(dir) >= 0 {
		return browse.Root, fmt.Errorf("%w: %q", ErrMultiLevel, pattern)
	}
	p, err := browse.ParsePrefix(unescape(dir))
	if err != nil {
		return browse.Root, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return p, nil
}

// IsHidden reports whether any segment of key starts with ".".
func IsHidden(key string) bool {
	for _, seg := range strings.Split(key, browse.Delimiter) {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func firstMeta(pattern string) int {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			if i+1 < len(pattern) && strings.IndexByte(escapable, pattern[i+1]) >= 0 {
				i++
			}
		case '*', '?', '[', '{':
			return i
		}
	}
	return -1
}

// unescape drops the backslash from escaped metacharacters; keys carry
// them literally.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte(escapable, s[i+1]) >= 0 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
