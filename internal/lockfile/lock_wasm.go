//go:build js && wasm

package lockfile

import "os"

// FlockExclusiveNonBlocking is a no-op in WASM: the host runs single-process.
func FlockExclusiveNonBlocking(f *os.File) error { return nil }

// FlockExclusiveBlocking is a no-op in WASM: the host runs single-process.
func FlockExclusiveBlocking(f *os.File) error { return nil }

// FlockUnlock is a no-op in WASM.
func FlockUnlock(f *os.File) error { return nil }
