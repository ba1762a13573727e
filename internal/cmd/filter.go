package cmd

import (
	"github.com/3leaps/bucketnav/pkg/browse"
)

// filterListing keeps the entries of l whose full key m accepts.
func filterListing(l browse.Listing, m browse.KeyMatcher) browse.Listing {
	out := l
	out.Folders = nil
	out.Objects = nil
	for _, f := range l.Folders {
		if m.Match(f.String()) {
			out.Folders = append(out.Folders, f)
		}
	}
	for _, o := range l.Objects {
		if m.Match(l.FullKey(o)) {
			out.Objects = append(out.Objects, o)
		}
	}
	return out
}
