package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Iron-Ham/tasklock/internal/errors"
)

// guardSuffix is appended to the record path to form the flock file. The guard is a
// separate file so the record itself can be replaced atomically by rename.
const guardSuffix = ".lock"

// DefaultGuardTimeout bounds how long Update waits for another process's guard.
const DefaultGuardTimeout = 5 * time.Second

// FileStore keeps the lock record as a JSON file on a filesystem shared by all
// competing processes.
type FileStore struct {
	path         string
	guard        *flock.Flock
	guardTimeout time.Duration
	mu           sync.Mutex // serializes goroutines sharing this store; flock only excludes other descriptors
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithGuardTimeout sets how long Update and Save wait for the guard held by another
// process before failing with a storage error. Non-positive values are ignored.
func WithGuardTimeout(d time.Duration) FileOption {
	return func(fs *FileStore) {
		if d > 0 {
			fs.guardTimeout = d
		}
	}
}

// NewFileStore creates a FileStore for the record at path. The parent directory is
// created if it doesn't exist; the record itself is created lazily.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.NewValidationError("lock file path must not be empty").WithField("lock.file")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve lock file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, errors.NewStorageError("failed to create lock directory", err).
			WithBackend(BackendFile).WithLocation(abs)
	}
	fs := &FileStore{
		path:         abs,
		guard:        flock.New(abs + guardSuffix),
		guardTimeout: DefaultGuardTimeout,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs, nil
}

// Location returns the absolute path of the record file.
func (fs *FileStore) Location() string {
	return fs.path
}

// Backend returns BackendFile.
func (fs *FileStore) Backend() string {
	return BackendFile
}

// Load reads and decodes the record file.
func (fs *FileStore) Load(ctx context.Context) (Record, error) {
	return fs.load()
}

func (fs *FileStore) load() (Record, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Unlocked(), errors.ErrRecordNotFound
		}
		return Unlocked(), fs.storageError("failed to read lock record", err)
	}
	return Decode(data)
}

// Save overwrites the record while holding the guard.
func (fs *FileStore) Save(ctx context.Context, rec Record) error {
	unlock, err := fs.lockGuard(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return fs.write(rec)
}

// Update runs fn against the current record while holding an exclusive flock on the
// guard file, so no other FileStore on the same path can interleave.
func (fs *FileStore) Update(ctx context.Context, fn UpdateFunc) (Record, error) {
	unlock, err := fs.lockGuard(ctx)
	if err != nil {
		return Unlocked(), err
	}
	defer unlock()

	current, readErr := fs.load()
	next, write := fn(current, readErr)
	if !write {
		return current, nil
	}
	if err := fs.write(next); err != nil {
		return current, err
	}
	return next, nil
}

// Close releases the guard if this process still holds it.
func (fs *FileStore) Close() error {
	return fs.guard.Unlock()
}

// lockGuard acquires the flock, retrying until ctx is done or the guard timeout
// elapses. A guard held past the timeout is reported as a storage error.
func (fs *FileStore) lockGuard(ctx context.Context) (func(), error) {
	fs.mu.Lock()
	guardCtx, cancel := context.WithTimeout(ctx, fs.guardTimeout)
	defer cancel()

	locked, err := fs.guard.TryLockContext(guardCtx, guardRetryDelay)
	if err != nil || !locked {
		fs.mu.Unlock()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil || guardCtx.Err() != nil {
			err = fmt.Errorf("guard held by another process for over %s", fs.guardTimeout)
		}
		return nil, fs.storageError("failed to lock guard file", err)
	}
	return func() {
		_ = fs.guard.Unlock()
		fs.mu.Unlock()
	}, nil
}

func (fs *FileStore) write(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := atomicWriteFile(fs.path, data, 0644); err != nil {
		return fs.storageError("failed to write lock record", err)
	}
	return nil
}

func (fs *FileStore) storageError(msg string, err error) error {
	return errors.NewStorageError(msg, err).WithBackend(BackendFile).WithLocation(fs.path)
}

// atomicWriteFile writes data to a temporary file in the same directory and renames
// it into place, so readers never observe a partially written record.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Errorf("failed to generate temp suffix: %w", err)
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, hex.EncodeToString(suffix))

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
