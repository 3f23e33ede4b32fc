// Package storage provides the JSON key-value adapter the diary is kept in.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Backend when a key has never been written or
// was removed.
var ErrNotFound = errors.New("storage: key not found")

// Backend is a raw byte store. Implementations must be safe for concurrent
// use; concurrent writers to one key resolve as last-writer-wins.
type Backend interface {
	// Get returns the stored bytes or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}
