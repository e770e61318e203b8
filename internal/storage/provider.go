// Package storage defines the key/value slot abstraction the item snapshot is
// persisted to, plus its backends.
package storage

import (
	"context"
	"fmt"
	"regexp"
)

// Provider is the interface for string-keyed slot storage.
type Provider interface {
	// Get returns the bytes stored under key, or an error wrapping
	// apperr.ErrNotFound when the key has never been written.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key in lexical order.
	Keys(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateKey rejects keys that are empty, too long, or could escape a
// directory when used as a file name.
func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	return nil
}
