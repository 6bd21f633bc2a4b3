// Package persistence provides the opaque blob storage the authentication
// core keeps its state in: enrolled secrets under one key space, the saved
// session under another. Callers never hand the storage layer structured
// records, only serialized bytes, so providers stay interchangeable.
//
// Providers register themselves by name (memory, file, sqlite, postgres,
// mysql) and are opened through Open. The database providers share one
// key/value table managed with GORM.
package persistence

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("persistence: not found")

// BlobStore is an opaque key/value store. Implementations must be safe for
// concurrent use; each key has a single writer in practice but reads can
// race a write.
type BlobStore interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}

// Options carries provider-specific settings.
type Options struct {
	// SealKey, when set, makes the file provider encrypt its contents with
	// AES-256-GCM. Must be exactly 32 bytes. Other providers ignore it.
	SealKey []byte
}
