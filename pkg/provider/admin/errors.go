package admin

import (
	"errors"
	"net/http"

	"github.com/3leaps/bucketnav/pkg/provider"
)

func (p *Provider) requestError(op, key string, err error) error {
	var se *statusError
	if errors.As(err, &se) {
		return p.wrapError(op, key, se.Status, err)
	}
	return p.wrapError(op, key, 0, err)
}

// wrapError maps HTTP status codes onto provider sentinels. status 0 means
// the request never produced a response.
func (p *Provider) wrapError(op, key string, status int, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderAdmin, Bucket: p.bucket, Key: key, Err: err}

	switch status {
	case http.StatusNotFound:
		if key == "" {
			wrapped.Err = provider.ErrBucketNotFound
		} else {
			wrapped.Err = provider.ErrNotFound
		}
	case http.StatusUnauthorized:
		wrapped.Err = provider.ErrInvalidCredentials
	case http.StatusForbidden:
		wrapped.Err = provider.ErrAccessDenied
	case http.StatusTooManyRequests:
		wrapped.Err = provider.ErrThrottled
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		wrapped.Err = provider.ErrProviderUnavailable
	}
	return wrapped
}
