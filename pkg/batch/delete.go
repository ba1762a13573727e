package batch

import (
	"context"

	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/provider"
)

// Deleter is what DeleteOp needs from a gateway.
type Deleter interface {
	provider.ObjectDeleter
	provider.PrefixDeleter
}

// DeleteOp deletes folder keys recursively and object keys singly.
func DeleteOp(d Deleter) Op {
	return func(ctx context.Context, key string) error {
		if browse.IsFolderKey(key) {
			_, err := d.DeletePrefix(ctx, key)
			return err
		}
		return d.DeleteObject(ctx, key)
	}
}
