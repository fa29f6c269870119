// Package prefs persists small user preferences (view mode, last active
// venue) behind a tiny key-value contract. The viewer core only ever calls
// it as a one-way notification and never depends on a value being present.
package prefs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when the key is absent or expired.
var ErrNotFound = errors.New("prefs: not found")

// Store is the persistence collaborator contract.
type Store interface {
	// Save stores value under key. ttl = 0 means no expiry.
	Save(ctx context.Context, key, value string, ttl time.Duration) error

	// Load returns the value for key, or ErrNotFound.
	Load(ctx context.Context, key string) (string, error)

	// Close releases backend resources.
	Close() error
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
