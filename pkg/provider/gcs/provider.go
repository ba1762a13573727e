// Package gcs implements the browse gateway for Google Cloud Storage.
//
// Credentials come from Application Default Credentials unless a service
// account file is configured. STORAGE_EMULATOR_HOST is honoured by the SDK,
// which is how integration tests reach fake-gcs-server.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// DefaultMaxKeys is the default listing page size.
const DefaultMaxKeys = 1000

// singleShotLimit is the size under which uploads skip the resumable protocol.
const singleShotLimit = 16 << 20

// Config configures a GCS gateway.
type Config struct {
	Bucket string

	// CredentialsFile is a service account JSON key. Empty uses ADC.
	CredentialsFile string

	// Endpoint overrides the JSON API endpoint.
	Endpoint string

	MaxKeys int
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs config: bucket name is required")
	}
	return nil
}

// Provider is the GCS gateway for one bucket.
type Provider struct {
	client  *storage.Client
	bucket  *storage.BucketHandle
	name    string
	maxKeys int
}

var _ provider.Gateway = (*Provider)(nil)

// New creates a storage client bound to cfg.Bucket.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderGCS, Bucket: cfg.Bucket, Err: err}
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Provider{client: client, bucket: client.Bucket(cfg.Bucket), name: cfg.Bucket, maxKeys: maxKeys}, nil
}

// Close releases the storage client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// ListWithDelimiter lists one level using the SDK pager so page tokens can be
// handed back to callers.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	attrs, next, err := p.page(ctx, &storage.Query{Prefix: opts.Prefix, Delimiter: opts.Delimiter}, opts.ContinuationToken, opts.MaxKeys)
	if err != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	res := &provider.ListWithDelimiterResult{ContinuationToken: next, IsTruncated: next != ""}
	for _, a := range attrs {
		if a.Prefix != "" {
			res.CommonPrefixes = append(res.CommonPrefixes, a.Prefix)
			continue
		}
		res.Objects = append(res.Objects, summary(a))
	}
	return res, nil
}

func (p *Provider) page(ctx context.Context, q *storage.Query, token string, maxKeys int) ([]*storage.ObjectAttrs, string, error) {
	if maxKeys <= 0 {
		maxKeys = p.maxKeys
	}
	var attrs []*storage.ObjectAttrs
	next, err := iterator.NewPager(p.bucket.Objects(ctx, q), maxKeys, token).NextPage(&attrs)
	if err != nil {
		return nil, "", err
	}
	return attrs, next, nil
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	a, err := p.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	return &provider.ObjectMeta{
		ObjectSummary: summary(a),
		ContentType:   a.ContentType,
		Metadata:      a.Metadata,
	}, nil
}

// PutObject streams body into a new object generation.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error {
	w := p.bucket.Object(key).NewWriter(ctx)
	if contentLength >= 0 && contentLength < singleShotLimit {
		w.ChunkSize = 0
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return p.wrapError("PutObject", key, err)
	}
	if err := w.Close(); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

// DeleteObject deletes one object; a missing object is not an error.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	err := p.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return p.wrapError("DeleteObject", key, err)
	}
	return nil
}

// DeletePrefix iterates the prefix and deletes objects one by one; GCS has no
// batch delete in the JSON client.
func (p *Provider) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" || !strings.HasSuffix(prefix, "/") {
		return 0, p.wrapError("DeletePrefix", prefix, provider.ErrInvalidKey)
	}

	q := &storage.Query{Prefix: prefix}
	if err := q.SetAttrSelection([]string{"Name"}); err != nil {
		return 0, p.wrapError("DeletePrefix", prefix, err)
	}

	deleted := 0
	it := p.bucket.Objects(ctx, q)
	for {
		a, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return deleted, nil
		}
		if err != nil {
			return deleted, p.wrapError("DeletePrefix", prefix, err)
		}
		if err := p.DeleteObject(ctx, a.Name); err != nil {
			return deleted, err
		}
		deleted++
	}
}

func summary(a *storage.ObjectAttrs) provider.ObjectSummary {
	return provider.ObjectSummary{
		Key:          a.Name,
		Size:         a.Size,
		ETag:         strings.Trim(a.Etag, "\""),
		LastModified: a.Updated,
	}
}

// wrapError maps SDK sentinels and googleapi status codes onto provider errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderGCS, Bucket: p.name, Key: key, Err: err}

	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case errors.Is(err, storage.ErrBucketNotExist):
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return wrapped
	}
	switch apiErr.Code {
	case http.StatusNotFound:
		wrapped.Err = provider.ErrNotFound
	case http.StatusForbidden:
		wrapped.Err = provider.ErrAccessDenied
	case http.StatusUnauthorized:
		wrapped.Err = provider.ErrInvalidCredentials
	case http.StatusTooManyRequests:
		wrapped.Err = provider.ErrThrottled
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		wrapped.Err = provider.ErrProviderUnavailable
	}
	return wrapped
}
