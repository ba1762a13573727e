//go:build cloudintegration

package s3_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/provider"
	"github.com/3leaps/bucketnav/pkg/provider/s3"
	"github.com/3leaps/bucketnav/test/cloudtest"
)

func TestProvider_ListLevel_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	cloudtest.PutObjects(t, ctx, bucket, []string{"readme.txt", "logs/a.log", "logs/2024/b.log", "images/x.png"})
	p := cloudtest.Gateway(t, ctx, bucket)

	root, err := provider.ListLevel(ctx, p, browse.Root, provider.LevelOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"images/", "logs/", "readme.txt"}, root.Keys())

	logs, err := provider.ListLevel(ctx, p, "logs/", provider.LevelOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"logs/2024/", "logs/a.log"}, logs.Keys())
}

func TestProvider_Paginates_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	cloudtest.PutObjects(t, ctx, bucket, []string{"p/1", "p/2", "p/3"})
	p := cloudtest.Gateway(t, ctx, bucket)

	first, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Prefix: "p/", Delimiter: "/", MaxKeys: 2})
	require.NoError(t, err)
	assert.Len(t, first.Objects, 2)
	require.True(t, first.IsTruncated)

	second, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Prefix: "p/", Delimiter: "/", MaxKeys: 2, ContinuationToken: first.ContinuationToken})
	require.NoError(t, err)
	assert.Len(t, second.Objects, 1)
	assert.False(t, second.IsTruncated)
}

func TestProvider_PutDelete_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	p := cloudtest.Gateway(t, ctx, bucket)

	require.NoError(t, p.PutObject(ctx, "docs/a.txt", strings.NewReader("hello"), 5))
	meta, err := p.Head(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)

	require.NoError(t, p.DeleteObject(ctx, "docs/a.txt"))
	_, err = p.Head(ctx, "docs/a.txt")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestProvider_DeletePrefix_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	cloudtest.PutObjects(t, ctx, bucket, []string{"logs/", "logs/a", "logs/2024/b", "logsx/keep"})
	p := cloudtest.Gateway(t, ctx, bucket)

	n, err := p.DeletePrefix(ctx, "logs/")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"logsx/keep"}, cloudtest.Keys(t, ctx, bucket))
}

func TestProvider_MissingBucket_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	p, err := s3.New(ctx, cloudtest.GatewayConfig("nonexistent-bucket-12345"))
	require.NoError(t, err)
	defer p.Close()

	_, err = p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Delimiter: "/"})
	require.Error(t, err)

	var provErr *provider.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.ErrorIs(t, provErr.Err, provider.ErrBucketNotFound)
}
