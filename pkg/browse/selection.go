package browse

// KeyMatcher decides whether a key belongs in a pattern selection.
// *match.Matcher satisfies it.
type KeyMatcher interface {
	Match(key string) bool
}

// Selection is an ordered set of fully-qualified keys.
//
// Folder keys are prefixes (trailing "/"), object keys are the listing prefix
// plus the relative key. Keys iterate in the order they were added, which
// keeps batch runs deterministic.
//
// The zero value is an empty selection.
type Selection struct {
	keys  []string
	index map[string]int
}

// NewSelection returns a selection holding keys (duplicates collapse).
func NewSelection(keys ...string) Selection {
	return Selection{}.with(keys...)
}

// Len returns the number of selected keys.
func (s Selection) Len() int {
	return len(s.keys)
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool {
	return len(s.keys) == 0
}

// Has reports whether key is selected.
func (s Selection) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Keys returns the selected keys in insertion order.
func (s Selection) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Toggle flips the membership of key.
func (s Selection) Toggle(key string) Selection {
	if s.Has(key) {
		return s.without(key)
	}
	return s.with(key)
}

// Clear returns an empty selection.
func (s Selection) Clear() Selection {
	return Selection{}
}

// SelectAll selects exactly the keys of l.
func (s Selection) SelectAll(l Listing) Selection {
	return NewSelection(l.Keys()...)
}

// SelectMatching adds every key of l accepted by m.
func (s Selection) SelectMatching(l Listing, m KeyMatcher) Selection {
	var matched []string
	for _, k := range l.Keys() {
		if m.Match(k) {
			matched = append(matched, k)
		}
	}
	return s.with(matched...)
}

// IsAllSelected reports whether l is non-empty and every key of l is selected.
func (s Selection) IsAllSelected(l Listing) bool {
	keys := l.Keys()
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// IsPartiallySelected reports whether some but not all keys of l are selected.
func (s Selection) IsPartiallySelected(l Listing) bool {
	if s.IsAllSelected(l) {
		return false
	}
	for _, k := range l.Keys() {
		if s.Has(k) {
			return true
		}
	}
	return false
}

// with appends the keys not yet selected, copying s once.
func (s Selection) with(add ...string) Selection {
	if len(add) == 0 {
		return s
	}
	keys := make([]string, len(s.keys), len(s.keys)+len(add))
	copy(keys, s.keys)
	index := make(map[string]int, len(keys)+len(add))
	for i, k := range keys {
		index[k] = i
	}
	for _, k := range add {
		if _, ok := index[k]; ok {
			continue
		}
		index[k] = len(keys)
		keys = append(keys, k)
	}
	return Selection{keys: keys, index: index}
}

func (s Selection) without(key string) Selection {
	keys := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		if k != key {
			keys = append(keys, k)
		}
	}
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}
	return Selection{keys: keys, index: index}
}
