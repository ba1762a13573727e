package provider

import (
	"context"
	"strings"
)

// Walker is what DeleteTree needs from a gateway without native prefix deletes.
type Walker interface {
	DelimiterLister
	ObjectDeleter
}

// DeleteTree deletes every object under prefix by walking delimiter listings.
//
// Child prefixes are emptied before the objects directly under prefix. The
// walk stops at the first failure and reports how many objects were removed.
// An empty prefix is rejected: a recursive delete is always scoped to a folder.
func DeleteTree(ctx context.Context, w Walker, prefix string) (int, error) {
	if prefix == "" || !strings.HasSuffix(prefix, "/") {
		return 0, &ProviderError{Op: "DeletePrefix", Key: prefix, Err: ErrInvalidKey}
	}
	return deleteTree(ctx, w, prefix)
}

func deleteTree(ctx context.Context, w Walker, prefix string) (int, error) {
	var (
		deleted int
		token   string
	)

	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		res, err := w.ListWithDelimiter(ctx, ListWithDelimiterOptions{
			Prefix:            prefix,
			Delimiter:         "/",
			ContinuationToken: token,
		})
		if err != nil {
			return deleted, err
		}

		for _, cp := range res.CommonPrefixes {
			if cp == prefix || !strings.HasPrefix(cp, prefix) {
				continue
			}
			n, err := deleteTree(ctx, w, cp)
			deleted += n
			if err != nil {
				return deleted, err
			}
		}

		for _, obj := range res.Objects {
			if err := w.DeleteObject(ctx, obj.Key); err != nil {
				return deleted, err
			}
			deleted++
		}

		if !res.IsTruncated || res.ContinuationToken == "" {
			return deleted, nil
		}
		token = res.ContinuationToken
	}
}
