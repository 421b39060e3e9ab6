package repository

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by Get when no payload exists for a key.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidKey is returned for keys that cannot be stored safely.
	ErrInvalidKey = errors.New("invalid document key")
)

// Repository is the durable byte store behind the document store.
// Payloads are opaque to the backend; the store owns their encoding.
// Implementations must be safe for concurrent use.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Watcher is implemented by backends that can observe writes made by other
// processes (or other stores sharing the same backend). onChange receives the
// key that changed and is always invoked from a single goroutine per Watch call,
// in the order changes were observed. Watch returns once the watch is armed;
// it stops when ctx is canceled.
type Watcher interface {
	Watch(ctx context.Context, onChange func(key string)) error
}

// ValidateKey rejects keys that would escape a namespace or a directory.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, "/\\\x00") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
