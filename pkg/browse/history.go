package browse

import (
	"errors"
	"fmt"
)

// ErrHistoryIndex is returned when a breadcrumb index is outside 0..pos.
var ErrHistoryIndex = errors.New("history index out of range")

// History is a browser-style navigation history.
//
// It holds an ordered list of visited prefixes and a cursor. Pos is -1 when
// the root is displayed without a recorded entry. Navigating to a new prefix
// discards every entry after the cursor; moving the cursor back keeps them.
//
// The zero value is an empty history positioned at the root.
type History struct {
	entries []Prefix
	// next is pos+1 so the zero value means pos == -1.
	next int
}

// NewHistory seeds a history from an initial prefix.
//
// One entry is synthesized per segment so a deep link to "a/b/" yields
// entries ["a/", "a/b/"] with the cursor on the last one.
func NewHistory(initial Prefix) History {
	entries := initial.Breadcrumbs()
	return History{entries: entries, next: len(entries)}
}

// Pos returns the cursor (-1 at root).
func (h History) Pos() int {
	return h.next - 1
}

// Len returns the number of recorded entries.
func (h History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the recorded entries.
func (h History) Entries() []Prefix {
	out := make([]Prefix, len(h.entries))
	copy(out, h.entries)
	return out
}

// Current returns the displayed prefix.
func (h History) Current() Prefix {
	if h.next == 0 {
		return Root
	}
	return h.entries[h.next-1]
}

// Goto appends p after the cursor, dropping any forward entries.
//
// Calling Goto twice with the same prefix records it twice.
func (h History) Goto(p Prefix) History {
	entries := make([]Prefix, h.next, h.next+1)
	copy(entries, h.entries[:h.next])
	entries = append(entries, p)
	return History{entries: entries, next: len(entries)}
}

// GotoIndex moves the cursor to entry i without touching the entries.
//
// i must satisfy 0 <= i <= Pos(). Views only offer breadcrumbs in that range,
// so a violation is a programming error.
func (h History) GotoIndex(i int) (History, error) {
	if i < 0 || i > h.Pos() {
		return h, fmt.Errorf("%w: %d not in [0, %d]", ErrHistoryIndex, i, h.Pos())
	}
	return History{entries: h.entries, next: i + 1}, nil
}

// Home moves the cursor to the root, keeping every entry for Forward.
func (h History) Home() History {
	return History{entries: h.entries}
}

// CanBack reports whether Back would change the displayed prefix.
func (h History) CanBack() bool {
	return h.next > 0
}

// Back moves the cursor one entry towards the start. From the first entry it
// moves to the root.
func (h History) Back() History {
	if h.next == 0 {
		return h
	}
	return History{entries: h.entries, next: h.next - 1}
}

// CanForward reports whether an entry after the cursor is still recorded.
func (h History) CanForward() bool {
	return h.next < len(h.entries)
}

// Forward re-enters the entry after the cursor, if one is still recorded.
func (h History) Forward() History {
	if !h.CanForward() {
		return h
	}
	return History{entries: h.entries, next: h.next + 1}
}
