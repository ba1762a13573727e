package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// mockAPIError implements smithy.APIError for testing error code mapping.
type mockAPIError struct {
	code    string
	message string
}

func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: %s", e.code, e.message) }
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

var _ smithy.APIError = (*mockAPIError)(nil)

// fakeAPI serves a fixed key set and records calls.
type fakeAPI struct {
	keys       []string
	listInputs []*s3.ListObjectsV2Input
	puts       map[string]string
	deleted    []string
	batches    [][]string
	batchOpts  int
	failKeys   map[string]string
	err        error
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listInputs = append(f.listInputs, in)
	if f.err != nil {
		return nil, f.err
	}
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)
	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for _, k := range f.keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(k))),
			ETag:         aws.String(`"etag-` + k + `"`),
			LastModified: aws.Time(time.Unix(0, 0).UTC()),
		})
	}
	return out, nil
}

func (f *fakeAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(3), ETag: aws.String(`"x"`), ContentType: aws.String("text/plain")}, nil
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[aws.ToString(in.Key)] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.batchOpts = len(opts)
	var batch []string
	out := &s3.DeleteObjectsOutput{}
	remaining := f.keys[:0:0]
	gone := map[string]bool{}
	for _, obj := range in.Delete.Objects {
		k := aws.ToString(obj.Key)
		batch = append(batch, k)
		if code, ok := f.failKeys[k]; ok {
			out.Errors = append(out.Errors, types.Error{Key: aws.String(k), Code: aws.String(code)})
			continue
		}
		gone[k] = true
	}
	for _, k := range f.keys {
		if !gone[k] {
			remaining = append(remaining, k)
		}
	}
	f.keys = remaining
	f.batches = append(f.batches, batch)
	return out, nil
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"empty bucket", Config{}, "bucket name is required"},
		{"valid minimal config", Config{Bucket: "b"}, ""},
		{"garage endpoint", Config{Bucket: "b", Endpoint: "http://localhost:3900", Region: "garage", ForcePathStyle: true}, ""},
		{"access key without secret", Config{Bucket: "b", AccessKeyID: "GK123"}, "provided together"},
		{"secret without access key", Config{Bucket: "b", SecretAccessKey: "s"}, "provided together"},
		{"negative max keys", Config{Bucket: "b", MaxKeys: -1}, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_ValidationError(t *testing.T) {
	_, err := New(context.Background(), Config{})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "s3 config: Bucket: bucket name is required", cfgErr.Error())
}

func TestProvider_ListWithDelimiter(t *testing.T) {
	api := &fakeAPI{keys: []string{"a/1.txt", "a/b/2.txt", "a/c/3.txt", "z.txt"}}
	p := newWithAPI(api, "bucket", 0)

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "a/", Delimiter: "/", MaxKeys: 5000})
	require.NoError(t, err)

	assert.Equal(t, []string{"a/b/", "a/c/"}, res.CommonPrefixes)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, "a/1.txt", res.Objects[0].Key)
	assert.Equal(t, "etag-a/1.txt", res.Objects[0].ETag)

	in := api.listInputs[0]
	assert.Equal(t, "bucket", aws.ToString(in.Bucket))
	assert.Equal(t, "/", aws.ToString(in.Delimiter))
	assert.Equal(t, int32(MaxAllowedKeys), aws.ToInt32(in.MaxKeys))
	assert.Nil(t, in.ContinuationToken)
}

func TestProvider_PutHeadDelete(t *testing.T) {
	api := &fakeAPI{}
	p := newWithAPI(api, "bucket", 0)
	ctx := context.Background()

	require.NoError(t, p.PutObject(ctx, "a/x.txt", strings.NewReader("abc"), 3))
	assert.Equal(t, "abc", api.puts["a/x.txt"])

	meta, err := p.Head(ctx, "a/x.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.Size)
	assert.Equal(t, "x", meta.ETag)
	assert.Equal(t, "text/plain", meta.ContentType)

	require.NoError(t, p.DeleteObject(ctx, "a/x.txt"))
	assert.Equal(t, []string{"a/x.txt"}, api.deleted)
}

func TestProvider_DeletePrefix(t *testing.T) {
	api := &fakeAPI{keys: []string{"logs/", "logs/a", "logs/2024/b", "logsx/keep"}}
	p := newWithAPI(api, "bucket", 0)

	n, err := p.DeletePrefix(context.Background(), "logs/")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"logsx/keep"}, api.keys)
	require.Len(t, api.batches, 1)
	assert.ElementsMatch(t, []string{"logs/", "logs/a", "logs/2024/b"}, api.batches[0])
	assert.Equal(t, 1, api.batchOpts, "content-md5 option must be passed")
}

func TestProvider_DeletePrefix_PartialFailure(t *testing.T) {
	api := &fakeAPI{
		keys:     []string{"d/1", "d/2", "d/3"},
		failKeys: map[string]string{"d/2": "AccessDenied"},
	}
	p := newWithAPI(api, "bucket", 0)

	n, err := p.DeletePrefix(context.Background(), "d/")
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, provider.ErrAccessDenied)
	assert.Contains(t, err.Error(), "1 of 3 objects failed")
}

func TestProvider_DeletePrefix_RejectsRoot(t *testing.T) {
	p := newWithAPI(&fakeAPI{}, "bucket", 0)
	_, err := p.DeletePrefix(context.Background(), "")
	assert.ErrorIs(t, err, provider.ErrInvalidKey)
}

func TestDeleteContentMD5(t *testing.T) {
	a, err := deleteContentMD5([]string{"k1", "k2"}, false)
	require.NoError(t, err)
	b, err := deleteContentMD5([]string{"k1", "k2"}, false)
	require.NoError(t, err)
	c, err := deleteContentMD5([]string{"k1"}, false)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 24) // base64 of 16 bytes
}

func TestWrapError(t *testing.T) {
	p := newWithAPI(&fakeAPI{}, "bucket", 0)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"typed not found", &types.NoSuchKey{}, provider.ErrNotFound},
		{"typed no bucket", &types.NoSuchBucket{}, provider.ErrBucketNotFound},
		{"api access denied", &mockAPIError{code: "AccessDenied"}, provider.ErrAccessDenied},
		{"api bad signature", &mockAPIError{code: "SignatureDoesNotMatch"}, provider.ErrInvalidCredentials},
		{"api slow down", &mockAPIError{code: "SlowDown"}, provider.ErrThrottled},
		{"api internal", &mockAPIError{code: "InternalError"}, provider.ErrProviderUnavailable},
		{"api invalid name", &mockAPIError{code: "InvalidObjectName"}, provider.ErrInvalidKey},
		{"message 403", errors.New("http 403"), provider.ErrAccessDenied},
		{"message 503", errors.New("status 503"), provider.ErrProviderUnavailable},
		{"message no bucket", errors.New("NoSuchBucket: gone"), provider.ErrBucketNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.wrapError("Op", "k", tt.err)
			var provErr *provider.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, provider.ProviderS3, provErr.Provider)
			assert.Equal(t, "bucket", provErr.Bucket)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	unknown := p.wrapError("Op", "", &mockAPIError{code: "Weird"})
	assert.Equal(t, "PROVIDER_ERROR", provider.Code(unknown))
}

func TestProvider_ListError(t *testing.T) {
	p := newWithAPI(&fakeAPI{err: &mockAPIError{code: "NoSuchBucket"}}, "missing", 0)
	_, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{})
	assert.ErrorIs(t, err, provider.ErrBucketNotFound)
}

func TestClampMaxKeys(t *testing.T) {
	assert.Equal(t, 1000, clampMaxKeys(0, DefaultMaxKeys))
	assert.Equal(t, 50, clampMaxKeys(50, DefaultMaxKeys))
	assert.Equal(t, 200, clampMaxKeys(-1, 200))
	assert.Equal(t, MaxAllowedKeys, clampMaxKeys(5000, DefaultMaxKeys))
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, "eu-west-1", resolveRegion("", "eu-west-1"))
	assert.Equal(t, DefaultAWSRegion, resolveRegion("", ""))
	assert.Equal(t, "", resolveRegion("http://localhost:3900", ""))
	assert.Equal(t, "garage", resolveRegion("http://localhost:3900", "garage"))
}
