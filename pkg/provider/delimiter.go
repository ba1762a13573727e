package provider

import (
	"context"
	"strings"

	"github.com/3leaps/bucketnav/pkg/browse"
)

// DelimiterLister supports delimiter-based listing.
//
// Delimiter listing returns:
//   - Objects directly under Prefix (no nested delimiter in the remainder)
//   - CommonPrefixes (immediate child prefixes)
//
// Implementations should map to provider-native delimiter listing when available
// (e.g., S3 ListObjectsV2 with Delimiter).
type DelimiterLister interface {
	ListWithDelimiter(ctx context.Context, opts ListWithDelimiterOptions) (*ListWithDelimiterResult, error)
}

// ListWithDelimiterOptions configures a delimiter listing operation.
type ListWithDelimiterOptions struct {
	// Prefix filters results to keys starting with this value.
	Prefix string

	// Delimiter groups keys (e.g., "/").
	Delimiter string

	// ContinuationToken resumes listing from a previous ListWithDelimiterResult.
	ContinuationToken string

	// MaxKeys limits the number of keys returned per page.
	MaxKeys int
}

// ListWithDelimiterResult contains a page of results from a delimiter listing.
type ListWithDelimiterResult struct {
	// Objects are object summaries directly under the requested Prefix.
	Objects []ObjectSummary

	// CommonPrefixes are the immediate child prefixes.
	CommonPrefixes []string

	ContinuationToken string
	IsTruncated       bool
}

// LevelOptions configures ListLevel.
type LevelOptions struct {
	ContinuationToken string
	MaxKeys           int
}

// ListLevel fetches one page of one hierarchy level as a browse.Listing.
//
// Folder-marker objects (key equal to the prefix) are dropped, as is anything
// a misbehaving backend returns outside the prefix.
func ListLevel(ctx context.Context, lister DelimiterLister, prefix browse.Prefix, opts LevelOptions) (browse.Listing, error) {
	res, err := lister.ListWithDelimiter(ctx, ListWithDelimiterOptions{
		Prefix:            prefix.String(),
		Delimiter:         browse.Delimiter,
		ContinuationToken: opts.ContinuationToken,
		MaxKeys:           opts.MaxKeys,
	})
	if err != nil {
		return browse.Listing{}, err
	}
	return ToListing(prefix, res), nil
}

// ToListing converts a delimiter listing page rooted at prefix.
func ToListing(prefix browse.Prefix, res *ListWithDelimiterResult) browse.Listing {
	l := browse.Listing{
		Prefix:    prefix,
		Folders:   make([]browse.Prefix, 0, len(res.CommonPrefixes)),
		Objects:   make([]browse.Object, 0, len(res.Objects)),
		NextToken: res.ContinuationToken,
		Truncated: res.IsTruncated,
	}

	for _, cp := range res.CommonPrefixes {
		if !prefix.Contains(cp) || cp == prefix.String() {
			continue
		}
		rest := strings.TrimPrefix(cp, prefix.String())
		child, err := prefix.Child(rest)
		if err != nil {
			continue
		}
		l.Folders = append(l.Folders, child)
	}

	for _, obj := range res.Objects {
		if !prefix.Contains(obj.Key) {
			continue
		}
		rel := strings.TrimPrefix(obj.Key, prefix.String())
		if rel == "" || strings.Contains(rel, browse.Delimiter) {
			continue
		}
		l.Objects = append(l.Objects, browse.Object{
			RelativeKey:  rel,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}

	return l
}
