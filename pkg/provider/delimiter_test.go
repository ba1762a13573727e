package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/provider"
	"github.com/3leaps/bucketnav/pkg/provider/providertest"
)

func TestToListing(t *testing.T) {
	mod := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	res := &provider.ListWithDelimiterResult{
		CommonPrefixes: []string{"data/logs/", "data/", "other/x/"},
		Objects: []provider.ObjectSummary{
			{Key: "data/", Size: 0},
			{Key: "data/readme.txt", Size: 12, ETag: "abc", LastModified: mod},
			{Key: "data/deep/file", Size: 1},
			{Key: "elsewhere.txt", Size: 1},
		},
		ContinuationToken: "tok",
		IsTruncated:       true,
	}

	l := provider.ToListing("data/", res)

	assert.Equal(t, browse.Prefix("data/"), l.Prefix)
	assert.Equal(t, []browse.Prefix{"data/logs/"}, l.Folders)
	require.Len(t, l.Objects, 1)
	assert.Equal(t, browse.Object{RelativeKey: "readme.txt", Size: 12, ETag: "abc", LastModified: mod}, l.Objects[0])
	assert.Equal(t, "tok", l.NextToken)
	assert.True(t, l.Truncated)
}

func TestListLevel(t *testing.T) {
	mem := providertest.New("a/1.txt", "a/b/2.txt", "a/c/3.txt", "root.txt")

	l, err := provider.ListLevel(context.Background(), mem, "a/", provider.LevelOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/", "a/c/", "a/1.txt"}, l.Keys())

	root, err := provider.ListLevel(context.Background(), mem, browse.Root, provider.LevelOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/", "root.txt"}, root.Keys())
}

func TestListLevel_Error(t *testing.T) {
	mem := providertest.New()
	mem.ListErr = &provider.ProviderError{Op: "ListWithDelimiter", Err: provider.ErrAccessDenied}

	_, err := provider.ListLevel(context.Background(), mem, browse.Root, provider.LevelOptions{})
	assert.True(t, errors.Is(err, provider.ErrAccessDenied))
}
