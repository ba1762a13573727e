package batch

import "fmt"

// PanicError is recorded when an operation panics.
type PanicError struct {
	Key   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("operation panicked on %q: %v", e.Key, e.Value)
}
