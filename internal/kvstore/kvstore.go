// Package kvstore defines the abstract key/value store with atomic
// compare-and-set and TTL the runtime core depends on, plus in-memory and
// Redis reference implementations. The cancellation broker, the atomic-lock
// primitive, and the replay queue are all built on this single interface.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("kvstore: key not found")

// ErrCASMismatch is returned by CompareAndSwap when the stored value does
// not match the expected one.
var ErrCASMismatch = errors.New("kvstore: compare-and-swap mismatch")

// Store is the abstract key/value store. Implementations MUST make Set,
// CompareAndSwap, and Delete atomic with respect to one another for a given
// key.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key with the given TTL (zero means no expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// CompareAndSwap atomically replaces key's value with newValue only if
	// its current value equals oldValue. If the key is absent, oldValue
	// must be the empty string for the swap to apply (a "create" CAS).
	// Returns ErrCASMismatch on failure.
	CompareAndSwap(ctx context.Context, key, oldValue, newValue string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all keys sharing the given prefix, used to purge
	// a lock record's sibling meta keys in one call.
	DeletePrefix(ctx context.Context, prefix string) error
}
