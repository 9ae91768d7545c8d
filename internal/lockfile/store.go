package lockfile

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/forrst/forrst/internal/kvstore"
)

// record is one stored value with its absolute expiry (zero means never).
type record struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

func (r record) expired(now time.Time) bool {
	return !r.Expires.IsZero() && !now.Before(r.Expires)
}

// Store is a single-process, file-backed implementation of kvstore.Store.
// All operations open path, take an exclusive flock for the duration of
// the read-modify-write, and rewrite the whole file. Safe for
// concurrent use by goroutines within one process and for exclusion across
// separate processes sharing the same path, but not a substitute for the
// Redis backend under real concurrent load: every call serializes through
// one file lock.
type Store struct {
	path string
}

// NewStore constructs a Store persisting to path, creating it if absent.
func NewStore(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, err
	}
	f.Close()
	return &Store{path: path}, nil
}

func (s *Store) withLock(fn func(data map[string]record) (map[string]record, error)) error {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := FlockExclusiveBlocking(f); err != nil {
		return err
	}
	defer FlockUnlock(f)

	data := map[string]record{}
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		dec := json.NewDecoder(f)
		if err := dec.Decode(&data); err != nil {
			return err
		}
	}

	next, err := fn(data)
	if err != nil {
		return err
	}

	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	return json.NewEncoder(f).Encode(next)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// Get implements kvstore.Store.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	var found bool
	err := s.withLock(func(data map[string]record) (map[string]record, error) {
		rec, ok := data[key]
		if ok && !rec.expired(time.Now()) {
			value, found = rec.Value, true
		} else if ok {
			delete(data, key)
		}
		return data, nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", kvstore.ErrNotFound
	}
	return value, nil
}

// Set implements kvstore.Store.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.withLock(func(data map[string]record) (map[string]record, error) {
		data[key] = record{Value: value, Expires: expiry(ttl)}
		return data, nil
	})
}

// CompareAndSwap implements kvstore.Store.
func (s *Store) CompareAndSwap(ctx context.Context, key, oldValue, newValue string, ttl time.Duration) error {
	return s.withLock(func(data map[string]record) (map[string]record, error) {
		now := time.Now()
		rec, ok := data[key]
		current := ""
		if ok && !rec.expired(now) {
			current = rec.Value
		} else if ok {
			delete(data, key)
		}
		if current != oldValue {
			return data, kvstore.ErrCASMismatch
		}
		if newValue == "" && oldValue != "" {
			delete(data, key)
		} else {
			data[key] = record{Value: newValue, Expires: expiry(ttl)}
		}
		return data, nil
	})
}

// Delete implements kvstore.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.withLock(func(data map[string]record) (map[string]record, error) {
		delete(data, key)
		return data, nil
	})
}

// DeletePrefix implements kvstore.Store.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	return s.withLock(func(data map[string]record) (map[string]record, error) {
		for k := range data {
			if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
				delete(data, k)
			}
		}
		return data, nil
	})
}

var _ kvstore.Store = (*Store)(nil)
