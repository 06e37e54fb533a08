package domain

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by a KeyValueStore for a key that was never
// written or has been deleted.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the port for the persistent mapping behind the local
// cache. Values are opaque byte slices.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
