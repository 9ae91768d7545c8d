// Package lock implements the named atomic-lock primitive: acquire (by
// user domain code), release, force-release, and status, each backed by the
// abstract key/value store. A lock record occupies "forrst_lock:<domain>:
// <resource>" with sibling metadata keys for owner, acquired_at, and
// expires_at.
package lock

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/kvstore"
	"github.com/google/uuid"
)

const metaOwnerSuffix = ":meta:owner"
const metaAcquiredSuffix = ":meta:acquired_at"
const metaExpiresSuffix = ":meta:expires_at"

// Record describes a held lock as returned by Status.
type Record struct {
	Key          string
	Locked       bool
	Owner        string
	AcquiredAt   time.Time
	ExpiresAt    time.Time
	TTLRemaining time.Duration
}

// Locks provides the acquire/release/force-release/status operations over a
// shared store. Acquire is domain-specific (the core only defines the record
// shape); release, force-release, and status back the three reserved
// atomic-lock extension functions.
type Locks struct {
	store kvstore.Store
}

// New constructs a Locks primitive over store.
func New(store kvstore.Store) *Locks {
	return &Locks{store: store}
}

// Acquire claims key for owner with the given TTL via a create-only CAS on
// the owner meta key. If another owner already holds it, the first result
// is a CONFLICT error and the second is nil.
func (l *Locks) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (*ferrors.Error, error) {
	now := time.Now()
	expires := now.Add(ttl)

	if err := l.store.CompareAndSwap(ctx, key+metaOwnerSuffix, "", owner, ttl); err != nil {
		if errors.Is(err, kvstore.ErrCASMismatch) {
			return ferrors.New(ferrors.KindConflict, "lock already held").WithDetail("key", key), nil
		}
		return nil, err
	}
	if err := l.store.Set(ctx, key+metaAcquiredSuffix, strconv.FormatInt(now.UnixNano(), 10), ttl); err != nil {
		return nil, err
	}
	if err := l.store.Set(ctx, key+metaExpiresSuffix, strconv.FormatInt(expires.UnixNano(), 10), ttl); err != nil {
		return nil, err
	}
	return nil, nil
}

// NewOwnerToken generates an opaque owner token for a caller about to
// acquire a lock.
func NewOwnerToken() string {
	return uuid.NewString()
}

// Release verifies the stored owner matches, then atomically
// compare-and-deletes the lock and purges the record's sibling meta keys.
func (l *Locks) Release(ctx context.Context, key, owner string) *ferrors.Error {
	current, err := l.store.Get(ctx, key+metaOwnerSuffix)
	if errors.Is(err, kvstore.ErrNotFound) {
		return ferrors.New(ferrors.KindLockNotFound, "lock not found").WithDetail("key", key)
	}
	if err != nil {
		return ferrors.Internal(err)
	}
	if current != owner {
		return ferrors.New(ferrors.KindLockOwnershipMismatch, "lock is held by a different owner").
			WithDetails(map[string]any{"key": key})
	}
	return l.release(ctx, key, current)
}

// ForceRelease skips the owner check but still errors on LOCK_NOT_FOUND.
func (l *Locks) ForceRelease(ctx context.Context, key string) *ferrors.Error {
	current, err := l.store.Get(ctx, key+metaOwnerSuffix)
	if errors.Is(err, kvstore.ErrNotFound) {
		return ferrors.New(ferrors.KindLockNotFound, "lock not found").WithDetail("key", key)
	}
	if err != nil {
		return ferrors.Internal(err)
	}
	return l.release(ctx, key, current)
}

func (l *Locks) release(ctx context.Context, key, owner string) *ferrors.Error {
	// CAS the owner key as the atomic release point; the
	// meta prefix delete that follows covers owner/acquired_at/expires_at
	// in one call since metaOwnerSuffix itself falls under "key:meta:".
	if err := l.store.CompareAndSwap(ctx, key+metaOwnerSuffix, owner, "", 0); err != nil {
		if errors.Is(err, kvstore.ErrCASMismatch) {
			return ferrors.New(ferrors.KindLockOwnershipMismatch, "lock changed owner concurrently").
				WithDetail("key", key)
		}
		return ferrors.Internal(err)
	}
	if err := l.store.DeletePrefix(ctx, key+":meta:"); err != nil {
		return ferrors.Internal(err)
	}
	return nil
}

// Status returns the lock's current state. When unlocked, only Key and
// Locked (false) are populated.
func (l *Locks) Status(ctx context.Context, key string) (Record, *ferrors.Error) {
	owner, err := l.store.Get(ctx, key+metaOwnerSuffix)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Record{Key: key, Locked: false}, nil
	}
	if err != nil {
		return Record{}, ferrors.Internal(err)
	}

	rec := Record{Key: key, Locked: true, Owner: owner}
	if acquiredRaw, err := l.store.Get(ctx, key+metaAcquiredSuffix); err == nil {
		if nanos, perr := strconv.ParseInt(acquiredRaw, 10, 64); perr == nil {
			rec.AcquiredAt = time.Unix(0, nanos)
		}
	}
	if expiresRaw, err := l.store.Get(ctx, key+metaExpiresSuffix); err == nil {
		if nanos, perr := strconv.ParseInt(expiresRaw, 10, 64); perr == nil {
			rec.ExpiresAt = time.Unix(0, nanos)
			if remaining := time.Until(rec.ExpiresAt); remaining > 0 {
				rec.TTLRemaining = remaining
			}
		}
	}
	return rec, nil
}
