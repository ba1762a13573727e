package provider

import (
	"context"
	"io"
)

// ObjectPutter can create or overwrite objects.
//
// Writing to an existing key replaces it; gateways never check for collisions.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error
}

// ObjectDeleter can delete a single object.
//
// Deleting a key that does not exist is not an error.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// PrefixDeleter can delete every object whose key begins with a prefix.
//
// It returns the number of objects removed. On error the count reflects what
// was removed before the failure.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
