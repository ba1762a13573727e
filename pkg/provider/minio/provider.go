// Package minio implements the browse gateway with minio-go.
//
// It speaks plain S3 and works against MinIO, Garage and other compatible
// stores without the AWS SDK's credential chain.
//
//	p, err := minio.New(ctx, minio.Config{
//		Endpoint:  "localhost:3900",
//		AccessKey: "GK...",
//		SecretKey: "...",
//		Bucket:    "media",
//		Region:    "garage",
//	})
package minio

import (
	"context"
	"fmt"
	"io"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// DefaultMaxKeys is the default listing page size.
const DefaultMaxKeys = 1000

// Config configures a minio-go gateway.
type Config struct {
	// Endpoint is host[:port] without a scheme.
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	MaxKeys   int
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	switch {
	case c.Endpoint == "":
		return fmt.Errorf("minio config: endpoint is required")
	case strings.Contains(c.Endpoint, "://"):
		return fmt.Errorf("minio config: endpoint %q must not include a scheme", c.Endpoint)
	case c.Bucket == "":
		return fmt.Errorf("minio config: bucket name is required")
	case (c.AccessKey != "") != (c.SecretKey != ""):
		return fmt.Errorf("minio config: access key and secret key must be provided together")
	}
	return nil
}

// api is the subset of *miniogo.Client the gateway calls.
type api interface {
	ListObjects(ctx context.Context, bucket string, opts miniogo.ListObjectsOptions) <-chan miniogo.ObjectInfo
	StatObject(ctx context.Context, bucket, key string, opts miniogo.StatObjectOptions) (miniogo.ObjectInfo, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts miniogo.RemoveObjectOptions) error
	RemoveObjects(ctx context.Context, bucket string, objects <-chan miniogo.ObjectInfo, opts miniogo.RemoveObjectsOptions) <-chan miniogo.RemoveObjectError
}

// Provider is the minio-go gateway for one bucket.
type Provider struct {
	client  api
	bucket  string
	maxKeys int
}

var _ provider.Gateway = (*Provider)(nil)

// New builds a client. It does not contact the server.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderMinIO, Bucket: cfg.Bucket, Err: err}
	}
	return newWithAPI(client, cfg.Bucket, cfg.MaxKeys), nil
}

func newWithAPI(client api, bucket string, maxKeys int) *Provider {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Provider{client: client, bucket: bucket, maxKeys: maxKeys}
}

func (p *Provider) Close() error { return nil }

// ListWithDelimiter lists one level. minio-go streams the whole listing, so a
// page is cut after MaxKeys entries and resumed with StartAfter.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if opts.Delimiter != "" && opts.Delimiter != "/" {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, fmt.Errorf("unsupported delimiter %q", opts.Delimiter))
	}

	res := &provider.ListWithDelimiterResult{}
	err := p.page(ctx, opts.Prefix, opts.Delimiter == "", opts.ContinuationToken, opts.MaxKeys, func(obj miniogo.ObjectInfo) {
		if opts.Delimiter != "" && strings.HasSuffix(obj.Key, "/") && obj.Key != opts.Prefix {
			res.CommonPrefixes = append(res.CommonPrefixes, obj.Key)
			return
		}
		res.Objects = append(res.Objects, summary(obj))
	}, func(last string) {
		res.IsTruncated = true
		res.ContinuationToken = last
	})
	if err != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
	}
	return res, nil
}

// page reads up to maxKeys entries and peeks one more to detect truncation.
func (p *Provider) page(ctx context.Context, prefix string, recursive bool, startAfter string, maxKeys int, emit func(miniogo.ObjectInfo), truncated func(last string)) error {
	if maxKeys <= 0 {
		maxKeys = p.maxKeys
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		n    int
		last string
	)
	for obj := range p.client.ListObjects(ctx, p.bucket, miniogo.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  recursive,
		StartAfter: startAfter,
		MaxKeys:    maxKeys,
	}) {
		if obj.Err != nil {
			return obj.Err
		}
		if n == maxKeys {
			truncated(last)
			return nil
		}
		emit(obj)
		last = obj.Key
		n++
	}
	return ctx.Err()
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	st, err := p.client.StatObject(ctx, p.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	return &provider.ObjectMeta{
		ObjectSummary: summary(st),
		ContentType:   st.ContentType,
		Metadata:      st.UserMetadata,
	}, nil
}

func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error {
	if _, err := p.client.PutObject(ctx, p.bucket, key, body, contentLength, miniogo.PutObjectOptions{}); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	if err := p.client.RemoveObject(ctx, p.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	return nil
}

// DeletePrefix streams a recursive listing into RemoveObjects.
func (p *Provider) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" || !strings.HasSuffix(prefix, "/") {
		return 0, p.wrapError("DeletePrefix", prefix, provider.ErrInvalidKey)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sent    int
		listErr error
	)
	objects := make(chan miniogo.ObjectInfo)
	go func() {
		defer close(objects)
		for obj := range p.client.ListObjects(ctx, p.bucket, miniogo.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				listErr = obj.Err
				return
			}
			select {
			case objects <- obj:
				sent++
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		failed   int
		firstErr error
	)
	for rmErr := range p.client.RemoveObjects(ctx, p.bucket, objects, miniogo.RemoveObjectsOptions{}) {
		failed++
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", rmErr.ObjectName, rmErr.Err)
		}
	}

	// RemoveObjects drains objects before closing its result channel, so the
	// listing goroutine has finished writing sent and listErr.
	deleted := sent - failed
	switch {
	case listErr != nil:
		return deleted, p.wrapError("DeletePrefix", prefix, listErr)
	case firstErr != nil:
		return deleted, p.wrapError("DeletePrefix", prefix, fmt.Errorf("%d objects failed to delete; first %w", failed, firstErr))
	}
	return deleted, nil
}

func summary(obj miniogo.ObjectInfo) provider.ObjectSummary {
	return provider.ObjectSummary{
		Key:          obj.Key,
		Size:         obj.Size,
		ETag:         strings.Trim(obj.ETag, "\""),
		LastModified: obj.LastModified,
	}
}
