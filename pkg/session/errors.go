package session

import (
	"errors"
	"fmt"

	"github.com/3leaps/bucketnav/pkg/browse"
)

var (
	// ErrFetchFailed is matched by every *FetchError.
	ErrFetchFailed = errors.New("listing fetch failed")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrNotInListing rejects selecting a key the displayed listing does not
	// contain.
	ErrNotInListing = errors.New("key not in current listing")
)

// FetchError reports a failed listing retrieval. History and selection are
// unchanged when it is returned; retrying the same call is safe.
type FetchError struct {
	Bucket string
	Prefix browse.Prefix
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s/%s: %v", ErrFetchFailed, e.Bucket, e.Prefix, e.Err)
}

// Is matches ErrFetchFailed.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
