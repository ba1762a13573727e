package browse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleListing() Listing {
	return Listing{
		Prefix:  "data/",
		Folders: []Prefix{"data/logs/", "data/images/"},
		Objects: []Object{{RelativeKey: "readme.txt", Size: 12}},
	}
}

func TestListing_Keys(t *testing.T) {
	l := sampleListing()
	assert.Equal(t, []string{"data/logs/", "data/images/", "data/readme.txt"}, l.Keys())
	assert.Equal(t, 3, l.Len())
	assert.False(t, l.IsEmpty())
	assert.True(t, Listing{Prefix: "x/"}.IsEmpty())
	assert.Equal(t, int64(12), l.TotalSize())
}

func TestSelection_SelectAllExact(t *testing.T) {
	l := Listing{
		Prefix:  Root,
		Folders: []Prefix{"logs/", "images/"},
		Objects: []Object{{RelativeKey: "readme.txt"}},
	}

	sel := Selection{}.SelectAll(l)
	assert.Equal(t, []string{"logs/", "images/", "readme.txt"}, sel.Keys())
	assert.True(t, sel.IsAllSelected(l))
	assert.False(t, sel.IsPartiallySelected(l))

	for _, key := range l.Keys() {
		t.Run(key, func(t *testing.T) {
			toggled := sel.Toggle(key)
			assert.False(t, toggled.IsAllSelected(l))
			assert.True(t, toggled.IsPartiallySelected(l))
			assert.Equal(t, 2, toggled.Len())
		})
	}
}

func TestSelection_SelectAllReplacesPrior(t *testing.T) {
	l := sampleListing()
	sel := NewSelection("other/stale.txt").SelectAll(l)
	assert.False(t, sel.Has("other/stale.txt"))
	assert.Equal(t, l.Len(), sel.Len())
}

func TestSelection_Clear(t *testing.T) {
	l := sampleListing()
	sel := Selection{}.SelectAll(l).Clear()
	assert.True(t, sel.IsEmpty())
	assert.False(t, sel.IsAllSelected(l))
	assert.False(t, sel.IsPartiallySelected(l))
}

func TestSelection_EmptyListing(t *testing.T) {
	empty := Listing{Prefix: "x/"}
	sel := Selection{}.SelectAll(empty)
	assert.True(t, sel.IsEmpty())
	assert.False(t, sel.IsAllSelected(empty))
	assert.False(t, sel.IsPartiallySelected(empty))
}

func TestSelection_Toggle(t *testing.T) {
	sel := Selection{}.Toggle("a").Toggle("b").Toggle("a")
	assert.Equal(t, []string{"b"}, sel.Keys())
	assert.False(t, sel.Has("a"))

	// receiver unchanged
	base := NewSelection("x")
	_ = base.Toggle("y")
	assert.Equal(t, []string{"x"}, base.Keys())
}

func TestNewSelection_Dedup(t *testing.T) {
	sel := NewSelection("a", "b", "a")
	assert.Equal(t, []string{"a", "b"}, sel.Keys())
}

type suffixMatcher string

func (s suffixMatcher) Match(key string) bool { return strings.HasSuffix(key, string(s)) }

func TestSelection_SelectMatching(t *testing.T) {
	l := Listing{
		Prefix:  "data/",
		Folders: []Prefix{"data/logs/"},
		Objects: []Object{{RelativeKey: "a.txt"}, {RelativeKey: "b.csv"}, {RelativeKey: "c.txt"}},
	}

	sel := NewSelection("data/b.csv").SelectMatching(l, suffixMatcher(".txt"))
	assert.Equal(t, []string{"data/b.csv", "data/a.txt", "data/c.txt"}, sel.Keys())
	assert.True(t, sel.IsPartiallySelected(l))
}

func TestSelection_SelectAllLargePage(t *testing.T) {
	l := Listing{Prefix: "bulk/"}
	for i := 0; i < 5000; i++ {
		l.Objects = append(l.Objects, Object{RelativeKey: fmt.Sprintf("obj-%05d", i)})
	}

	sel := Selection{}.SelectAll(l)
	assert.Equal(t, 5000, sel.Len())
	assert.Equal(t, l.Keys(), sel.Keys())
	assert.True(t, sel.IsAllSelected(l))

	sel = sel.Toggle("bulk/obj-00000").Toggle("bulk/obj-00000")
	assert.Equal(t, "bulk/obj-00000", sel.Keys()[4999])
	assert.True(t, sel.Has("bulk/obj-04999"))
}

func TestListing_Has(t *testing.T) {
	l := sampleListing()
	tests := []struct {
		key  string
		want bool
	}{
		{key: "data/logs/", want: true},
		{key: "data/readme.txt", want: true},
		{key: "readme.txt", want: false},
		{key: "data/logs", want: false},
		{key: "images/", want: false},
		{key: "data/logs/app.log", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Has(tt.key))
		})
	}
}
