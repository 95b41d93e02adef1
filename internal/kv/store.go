// Package kv is the key-value collaborator behind every repository.
//
// Values are opaque bytes (JSON in practice). Each key carries a version that
// starts at 1 and increments on every write, which lets callers do
// compare-and-swap without transactions.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent
	ErrNotFound = errors.New("kv: key not found")
	// ErrConflict is returned by CompareAndSwap when the stored version differs
	ErrConflict = errors.New("kv: version conflict")
)

// Entry is a stored value with its version
type Entry struct {
	Key     string
	Value   []byte
	Version int64
}

// Store is the storage contract shared by every backend
type Store interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) (*Entry, error)
	// MGet preserves the order of keys; absent keys yield nil slots.
	MGet(ctx context.Context, keys []string) ([]*Entry, error)
	// Set writes unconditionally.
	Set(ctx context.Context, key string, value []byte) error
	// CompareAndSwap writes only if the stored version equals expected.
	// expected == 0 means the key must not exist. Returns the new version.
	CompareAndSwap(ctx context.Context, key string, value []byte, expected int64) (int64, error)
	Delete(ctx context.Context, key string) error
	// Scan returns every entry whose key starts with prefix, sorted by key.
	Scan(ctx context.Context, prefix string) ([]*Entry, error)
	Close() error
}
