package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/provider"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string

	ContentLength int64
}

func newBackend(t *testing.T, handler http.HandlerFunc) (*Provider, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			Method:        r.Method,
			Path:          r.URL.EscapedPath(),
			Query:         r.URL.RawQuery,
			Auth:          r.Header.Get("Authorization"),
			ContentLength: r.ContentLength,
		}
		if r.Method == http.MethodPut {
			f, _, err := r.FormFile("file")
			if err == nil {
				b, _ := io.ReadAll(f)
				rec.Body = string(b)
			}
		}
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p, err := New(Config{Endpoint: srv.URL + "/api", Bucket: "media", Token: "tok"})
	require.NoError(t, err)
	return p, &reqs
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{Endpoint: "http://x"}.Validate())
	assert.Error(t, Config{Bucket: "b", Endpoint: "localhost:3909"}.Validate())
	assert.NoError(t, Config{Bucket: "b", Endpoint: "http://localhost:3909/api"}.Validate())
}

func TestProvider_ListWithDelimiter(t *testing.T) {
	mod := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	p, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(listResponse{
			Prefix:    "photos/",
			Prefixes:  []string{"photos/2023/", "photos/2024/"},
			Objects:   []object{{ObjectKey: "cover.jpg", Size: 42, LastModified: mod}},
			NextToken: "next-1",
		})
	})

	l, err := provider.ListLevel(context.Background(), p, "photos/", provider.LevelOptions{MaxKeys: 50})
	require.NoError(t, err)

	assert.Equal(t, []string{"photos/2023/", "photos/2024/", "photos/cover.jpg"}, l.Keys())
	assert.Equal(t, int64(42), l.Objects[0].Size)
	assert.Equal(t, mod, l.Objects[0].LastModified)
	assert.Equal(t, "next-1", l.NextToken)
	assert.True(t, l.Truncated)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/browse/media", got.Path)
	assert.Contains(t, got.Query, "prefix=photos%2F")
	assert.Contains(t, got.Query, "limit=50")
	assert.Equal(t, "Bearer tok", got.Auth)
}

func TestProvider_PutObject(t *testing.T) {
	p, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, p.PutObject(context.Background(), "docs/a b.txt", strings.NewReader("hello"), 5))

	got := (*reqs)[0]
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/api/browse/media/docs/a%20b.txt", got.Path)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, int64(-1), got.ContentLength, "body is streamed, not buffered")
}

func TestProvider_PutObjectLargeBody(t *testing.T) {
	p, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	payload := strings.Repeat("0123456789abcdef", 1<<16)
	require.NoError(t, p.PutObject(context.Background(), "big.bin", strings.NewReader(payload), int64(len(payload))))
	require.Len(t, *reqs, 1)
	assert.Equal(t, payload, (*reqs)[0].Body)
}

func TestProvider_PutObjectBodyError(t *testing.T) {
	p, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	})

	boom := errors.New("disk read failed")
	body := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(boom))
	err := p.PutObject(context.Background(), "a.txt", body, 100)
	require.Error(t, err)
	var pe *provider.ProviderError
	assert.ErrorAs(t, err, &pe)
}

func TestProvider_Head(t *testing.T) {
	mod := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	p, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/browse/media/docs/a.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", "11")
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Last-Modified", mod.Format(http.TimeFormat))
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("X-Amz-Meta-Owner", "ops")
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	meta, err := p.Head(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", meta.Key)
	assert.Equal(t, int64(11), meta.Size)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.Equal(t, "abc123", meta.ETag)
	assert.True(t, mod.Equal(meta.LastModified))
	assert.Equal(t, map[string]string{"owner": "ops"}, meta.Metadata)
	assert.Equal(t, http.MethodHead, (*reqs)[0].Method)
	assert.Equal(t, "Bearer tok", (*reqs)[0].Auth)

	_, err = p.Head(ctx, "docs/missing.txt")
	assert.ErrorIs(t, err, provider.ErrNotFound)

	_, err = p.Head(ctx, "docs/")
	assert.ErrorIs(t, err, provider.ErrInvalidKey)
	assert.Len(t, *reqs, 2)
}

func TestProvider_Delete(t *testing.T) {
	p, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") == "true" {
			_, _ = w.Write([]byte(`{"deleted":7}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, p.DeleteObject(ctx, "a.txt"))
	n, err := p.DeletePrefix(ctx, "logs/")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.Len(t, *reqs, 2)
	assert.Equal(t, "/api/browse/media/a.txt", (*reqs)[0].Path)
	assert.Equal(t, "", (*reqs)[0].Query)
	assert.Equal(t, "/api/browse/media/logs/", (*reqs)[1].Path)
	assert.Equal(t, "recursive=true", (*reqs)[1].Query)

	_, err = p.DeletePrefix(ctx, "")
	assert.ErrorIs(t, err, provider.ErrInvalidKey)
}

func TestProvider_DeletePrefixFallsBackToWalk(t *testing.T) {
	p, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Query().Get("prefix") == "logs/":
			_, _ = w.Write([]byte(`{"prefix":"logs/","prefixes":["logs/2024/"],"objects":[{"objectKey":"a.log"}]}`))
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"prefix":"logs/2024/","objects":[{"objectKey":"b.log"}]}`))
		case r.URL.Query().Get("recursive") == "true":
			w.WriteHeader(http.StatusMethodNotAllowed)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	n, err := p.DeletePrefix(context.Background(), "logs/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var deleted []string
	for _, r := range *reqs {
		if r.Method == http.MethodDelete && r.Query == "" {
			deleted = append(deleted, r.Path)
		}
	}
	assert.Equal(t, []string{"/api/browse/media/logs/2024/b.log", "/api/browse/media/logs/a.log"}, deleted)
}

func TestProvider_Errors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, provider.ErrNotFound},
		{http.StatusUnauthorized, provider.ErrInvalidCredentials},
		{http.StatusForbidden, provider.ErrAccessDenied},
		{http.StatusTooManyRequests, provider.ErrThrottled},
		{http.StatusServiceUnavailable, provider.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			p, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})
			err := p.DeleteObject(context.Background(), "k")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	p, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"disk on fire"}`))
	})
	_, err := provider.ListLevel(context.Background(), p, browse.Root, provider.LevelOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Equal(t, "PROVIDER_ERROR", provider.Code(err))
}

func TestProvider_ListNotFoundIsBucket(t *testing.T) {
	p, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Delimiter: "/"})
	assert.ErrorIs(t, err, provider.ErrBucketNotFound)
}
