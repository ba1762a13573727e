package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ProviderError
		expected string
	}{
		{
			name:     "with key",
			err:      &ProviderError{Op: "DeleteObject", Provider: ProviderS3, Bucket: "b", Key: "a/x.txt", Err: ErrNotFound},
			expected: "s3 DeleteObject: b/a/x.txt: object not found",
		},
		{
			name:     "without key",
			err:      &ProviderError{Op: "ListWithDelimiter", Provider: ProviderGCS, Bucket: "b", Err: ErrAccessDenied},
			expected: "gcs ListWithDelimiter: b: access denied",
		},
		{
			name:     "without bucket",
			err:      &ProviderError{Op: "New", Provider: ProviderAdmin, Err: errors.New("bad endpoint")},
			expected: "admin New: bad endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestCode(t *testing.T) {
	wrap := func(err error) error {
		return fmt.Errorf("outer: %w", &ProviderError{Op: "x", Provider: ProviderS3, Err: err})
	}

	tests := []struct {
		err       error
		code      string
		retryable bool
	}{
		{nil, "", false},
		{wrap(ErrNotFound), "NOT_FOUND", false},
		{wrap(ErrBucketNotFound), "BUCKET_NOT_FOUND", false},
		{wrap(ErrAccessDenied), "ACCESS_DENIED", false},
		{wrap(ErrInvalidCredentials), "INVALID_CREDENTIALS", false},
		{wrap(ErrThrottled), "THROTTLED", true},
		{wrap(ErrProviderUnavailable), "PROVIDER_UNAVAILABLE", true},
		{wrap(ErrInvalidKey), "INVALID_KEY", false},
		{errors.New("boom"), "PROVIDER_ERROR", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, Code(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestIsHelpers(t *testing.T) {
	err := &ProviderError{Op: "Head", Err: ErrNotFound}
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAccessDenied(err))
	assert.True(t, IsThrottled(&ProviderError{Err: ErrThrottled}))
	assert.True(t, IsBucketNotFound(&ProviderError{Err: ErrBucketNotFound}))
	assert.True(t, IsInvalidCredentials(&ProviderError{Err: ErrInvalidCredentials}))
	assert.True(t, IsProviderUnavailable(&ProviderError{Err: ErrProviderUnavailable}))
}
