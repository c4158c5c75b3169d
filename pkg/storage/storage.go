package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound = errors.New("key not found")
)

// Database is a small key/value store holding JSON documents.
type Database interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
}
