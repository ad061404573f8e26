// Package store provides the key/value persistence layer used for registry
// configs, index snapshots, queue durability, and cache entries.
package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no value exists for a key.
var ErrKeyNotFound = errors.New("key not found")

// Store is the persistence collaborator. Keys are namespaced by prefix
// convention ("registry/", "index/", "queue/", "cache/").
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ListByPrefix returns all key/value pairs whose key starts with prefix.
	ListByPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
}
