package upload

import (
	"errors"
	"fmt"
)

// ErrBatchTooLarge is matched by every *BatchTooLargeError.
var ErrBatchTooLarge = errors.New("upload batch too large")

// BatchTooLargeError reports a rejected batch.
type BatchTooLargeError struct {
	Count int
	Max   int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("%s: %d files, at most %d allowed", ErrBatchTooLarge, e.Count, e.Max)
}

func (e *BatchTooLargeError) Unwrap() error {
	return ErrBatchTooLarge
}

// PanicError is recorded when opening or putting a file panics.
type PanicError struct {
	Key   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("upload panicked on %q: %v", e.Key, e.Value)
}
