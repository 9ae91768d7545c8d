// Package lockfile provides OS-level exclusive file locking (flock on
// unix, LockFileEx on windows, a no-op on wasm) plus, in store.go, a
// single-process file-backed implementation of kvstore.Store built on top
// of it, the alternate store backend for non-clustered deployments where
// running Redis is overkill.
package lockfile

import "errors"

// ErrLocked is returned when a blocking lock acquisition fails for a
// reason other than contention (rare; most platforms only fail on
// contention, which blocking acquisition simply waits out).
var ErrLocked = errors.New("lockfile: could not acquire exclusive lock")

// ErrLockBusy is returned by a non-blocking lock attempt when another
// process already holds the lock.
var ErrLockBusy = errors.New("lockfile: busy, held by another process")
