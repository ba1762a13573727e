// Package provider defines the object storage gateways the browser talks to.
//
// A gateway is bound to one bucket and must be safe for concurrent use.
// Authentication uses SDK default credential chains - gateways should not
// implement custom auth logic.
package provider

import (
	"context"
	"time"
)

// Gateway is the surface a browse session needs from a bucket.
type Gateway interface {
	DelimiterLister
	ObjectHeader
	ObjectPutter
	ObjectDeleter
	PrefixDeleter

	// Close releases any resources held by the gateway.
	Close() error
}

// ObjectHeader looks up the metadata of one object.
type ObjectHeader interface {
	// Head returns ErrNotFound if the object does not exist.
	Head(ctx context.Context, key string) (*ObjectMeta, error)
}

// ObjectSummary contains basic metadata returned from list operations.
type ObjectSummary struct {
	// Key is the full object key in the bucket.
	Key string

	Size int64

	// ETag is the entity tag without surrounding quotes.
	ETag string

	LastModified time.Time
}

// ObjectMeta contains full metadata for a single object.
type ObjectMeta struct {
	ObjectSummary

	ContentType string
	Metadata    map[string]string
}

// ProviderType identifies a storage backend.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage via the AWS SDK.
	ProviderS3 ProviderType = "s3"

	// ProviderMinIO represents an S3-compatible endpoint via minio-go.
	ProviderMinIO ProviderType = "minio"

	// ProviderGCS represents Google Cloud Storage.
	ProviderGCS ProviderType = "gcs"

	// ProviderFile represents a local directory treated as a bucket.
	ProviderFile ProviderType = "file"

	// ProviderAdmin represents the admin web backend's browse endpoints.
	ProviderAdmin ProviderType = "admin"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
