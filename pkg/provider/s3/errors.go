package s3

import (
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// wrapError converts SDK errors to provider errors carrying a sentinel.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderS3,
		Bucket:   p.bucket,
		Key:      key,
		Err:      err,
	}

	var (
		notFound     *types.NotFound
		noSuchKey    *types.NoSuchKey
		noSuchBucket *types.NoSuchBucket
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if sentinel := sentinelForCode(apiErr.ErrorCode()); sentinel != nil {
			wrapped.Err = sentinel
		}
		return wrapped
	}

	// Some S3-compatible stores return bare HTTP failures; match on the text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "NoSuchBucket"):
		wrapped.Err = provider.ErrBucketNotFound
	case strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "404"):
		wrapped.Err = provider.ErrNotFound
	case strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "Forbidden") || strings.Contains(msg, "403"):
		wrapped.Err = provider.ErrAccessDenied
	case strings.Contains(msg, "InvalidAccessKeyId") || strings.Contains(msg, "SignatureDoesNotMatch"):
		wrapped.Err = provider.ErrInvalidCredentials
	case strings.Contains(msg, "SlowDown") || strings.Contains(msg, "Throttling") || strings.Contains(msg, "429"):
		wrapped.Err = provider.ErrThrottled
	case strings.Contains(msg, "ServiceUnavailable") || strings.Contains(msg, "503"):
		wrapped.Err = provider.ErrProviderUnavailable
	}
	return wrapped
}

func sentinelForCode(code string) error {
	switch code {
	case "NoSuchKey", "NotFound":
		return provider.ErrNotFound
	case "NoSuchBucket":
		return provider.ErrBucketNotFound
	case "AccessDenied", "Forbidden":
		return provider.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return provider.ErrInvalidCredentials
	case "SlowDown", "Throttling", "RequestLimitExceeded":
		return provider.ErrThrottled
	case "ServiceUnavailable", "InternalError":
		return provider.ErrProviderUnavailable
	case "InvalidObjectName", "KeyTooLongError":
		return provider.ErrInvalidKey
	}
	return nil
}
