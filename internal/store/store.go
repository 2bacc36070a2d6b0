// Package store persists the lock record. It abstracts the durable storage shared by
// every competing process behind the Store interface, with a file-backed
// implementation for a shared filesystem and a Redis-backed implementation for
// processes on different machines.
//
// Both implementations make Update atomic with respect to other processes using the
// same backend: the read, the caller's decision and the write happen while a
// storage-native guard is held (flock for files, a Redis lock for Redis).
package store

import (
	"context"
	"time"
)

// Backend names accepted by configuration.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// UpdateFunc decides the next record given the current one. readErr is non-nil when
// the current record could not be loaded (missing, corrupt or unreadable); current is
// then the unlocked record. Returning write=false leaves storage untouched.
type UpdateFunc func(current Record, readErr error) (next Record, write bool)

// Store provides read-full-record / write-full-record access to the lock record.
type Store interface {
	// Load retrieves the record. Returns an error matching errors.ErrRecordNotFound
	// if it has never been written, or errors.ErrRecordCorrupt if it cannot be decoded.
	Load(ctx context.Context) (Record, error)

	// Save overwrites the record unconditionally.
	Save(ctx context.Context, rec Record) error

	// Update performs an atomic read-modify-write and returns the record now stored.
	// An error is returned only when the guard cannot be obtained or the write fails.
	Update(ctx context.Context, fn UpdateFunc) (Record, error)

	// Location describes where the record lives, for logs and diagnostics.
	Location() string

	// Backend returns BackendFile or BackendRedis.
	Backend() string

	// Close releases any resources held by the store.
	Close() error
}

// Watcher is implemented by stores that can signal record changes. The returned
// channel receives a value (coalesced) whenever the record may have changed; stop
// releases the watch. Notifications are hints only.
type Watcher interface {
	Watch(ctx context.Context) (changes <-chan struct{}, stop func(), err error)
}

// guardRetryDelay is how often a contended guard is retried.
const guardRetryDelay = 10 * time.Millisecond
