package minio

import (
	"context"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// wrapError maps minio-go's ErrorResponse onto provider sentinels.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderMinIO,
		Bucket:   p.bucket,
		Key:      key,
		Err:      err,
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, provider.ErrInvalidKey) {
		return wrapped
	}

	var resp miniogo.ErrorResponse
	if !errors.As(err, &resp) {
		return wrapped
	}

	switch resp.Code {
	case "NoSuchBucket":
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	case "NoSuchKey":
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case "AccessDenied":
		wrapped.Err = provider.ErrAccessDenied
		return wrapped
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		wrapped.Err = provider.ErrInvalidCredentials
		return wrapped
	case "SlowDown", "RequestTimeout":
		wrapped.Err = provider.ErrThrottled
		return wrapped
	case "InvalidObjectName", "KeyTooLongError":
		wrapped.Err = provider.ErrInvalidKey
		return wrapped
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		wrapped.Err = provider.ErrNotFound
	case http.StatusForbidden:
		wrapped.Err = provider.ErrAccessDenied
	case http.StatusUnauthorized:
		wrapped.Err = provider.ErrInvalidCredentials
	case http.StatusTooManyRequests:
		wrapped.Err = provider.ErrThrottled
	case http.StatusServiceUnavailable, http.StatusInternalServerError:
		wrapped.Err = provider.ErrProviderUnavailable
	}
	return wrapped
}
