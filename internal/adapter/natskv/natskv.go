// Package natskv implements the key-value store on a NATS JetStream bucket so
// several gallery processes can share one cache.
package natskv

import (
	"context"
	"errors"
	"fmt"

	"gallery/internal/domain"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the bucket used when none is configured.
const DefaultBucket = "gallery"

// bucket is the subset of jetstream.KeyValue the store needs.
type bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
}

// KV implements domain.KeyValueStore on a JetStream key-value bucket.
type KV struct {
	kv bucket
	nc *nats.Conn
}

var _ domain.KeyValueStore = (*KV)(nil)

// Open connects to the NATS server at url and binds to the named bucket,
// creating it if it does not exist.
func Open(ctx context.Context, url, name string) (*KV, error) {
	if name == "" {
		name = DefaultBucket
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("natskv: connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskv: jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "gallery local cache",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskv: bucket %s: %w", name, err)
	}
	return &KV{kv: kv, nc: nc}, nil
}

// Get retrieves the value for the given key.
func (c *KV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := c.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

// Put stores a value for the given key.
func (c *KV) Put(ctx context.Context, key string, value []byte) error {
	if _, err := c.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to store key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key-value pair.
func (c *KV) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Close drains the NATS connection.
func (c *KV) Close() error {
	if c.nc == nil {
		return nil
	}
	return c.nc.Drain()
}
