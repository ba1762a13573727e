// Package browse models a hierarchical view over a flat object key space.
//
// Object storage has no directories. A "folder" is a key prefix ending in the
// delimiter, and every type in this package is a plain value: transitions
// return new values and never mutate their receiver. Views own the current
// value and replace it on every user action.
package browse

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates prefix segments.
const Delimiter = "/"

// Root is the empty prefix (bucket root).
const Root Prefix = ""

// ErrInvalidPrefix indicates a string that is not a well-formed prefix.
var ErrInvalidPrefix = errors.New("invalid prefix")

// Prefix is a location in the key hierarchy.
//
// A Prefix is either empty (root) or a sequence of non-empty segments, each
// followed by "/". Two prefixes are equal iff their strings are equal.
type Prefix string

// ParsePrefix validates s as a prefix.
//
// The empty string is the root. Any other value must end with "/" and must not
// contain empty segments (no leading "/" and no "//").
func ParsePrefix(s string) (Prefix, error) {
	if s == "" {
		return Root, nil
	}
	if !strings.HasSuffix(s, Delimiter) {
		return Root, fmt.Errorf("%w: %q must end with %q", ErrInvalidPrefix, s, Delimiter)
	}
	for _, seg := range strings.Split(strings.TrimSuffix(s, Delimiter), Delimiter) {
		if seg == "" {
			return Root, fmt.Errorf("%w: %q contains an empty segment", ErrInvalidPrefix, s)
		}
	}
	return Prefix(s), nil
}

// NormalizePrefix coerces loosely formatted input into a prefix.
//
// Empty segments are dropped and a trailing "/" is added, so "a//b" and
// "/a/b" both become "a/b/". This mirrors how deep links are interpreted.
func NormalizePrefix(s string) Prefix {
	segs := splitSegments(s)
	if len(segs) == 0 {
		return Root
	}
	return Prefix(strings.Join(segs, Delimiter) + Delimiter)
}

// String returns the raw prefix string.
func (p Prefix) String() string {
	return string(p)
}

// IsRoot reports whether p is the bucket root.
func (p Prefix) IsRoot() bool {
	return p == Root
}

// Segments returns the path segments of p without delimiters.
func (p Prefix) Segments() []string {
	return splitSegments(string(p))
}

// Depth returns the number of segments in p.
func (p Prefix) Depth() int {
	return len(p.Segments())
}

// Name returns the last segment, or "" for root.
func (p Prefix) Name() string {
	segs := p.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Parent returns the enclosing prefix. The parent of root is root.
func (p Prefix) Parent() Prefix {
	segs := p.Segments()
	if len(segs) <= 1 {
		return Root
	}
	return Prefix(strings.Join(segs[:len(segs)-1], Delimiter) + Delimiter)
}

// Child returns p extended by one segment.
func (p Prefix) Child(name string) (Prefix, error) {
	name = strings.TrimSuffix(name, Delimiter)
	if name == "" || strings.Contains(name, Delimiter) {
		return Root, fmt.Errorf("%w: segment %q", ErrInvalidPrefix, name)
	}
	return p + Prefix(name+Delimiter), nil
}

// Contains reports whether key lies at or below p.
func (p Prefix) Contains(key string) bool {
	return strings.HasPrefix(key, string(p))
}

// Breadcrumbs returns one prefix per segment of p, shallowest first.
//
// For "a/b/c/" the result is ["a/", "a/b/", "a/b/c/"]; for root it is empty.
func (p Prefix) Breadcrumbs() []Prefix {
	segs := p.Segments()
	out := make([]Prefix, 0, len(segs))
	for i := range segs {
		out = append(out, Prefix(strings.Join(segs[:i+1], Delimiter)+Delimiter))
	}
	return out
}

// IsFolderKey reports whether a selection key denotes a folder.
func IsFolderKey(key string) bool {
	return strings.HasSuffix(key, Delimiter)
}

func splitSegments(s string) []string {
	parts := strings.Split(s, Delimiter)
	segs := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segs = append(segs, part)
		}
	}
	return segs
}
