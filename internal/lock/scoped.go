package lock

import (
	"context"
	"time"

	"github.com/Iron-Ham/tasklock/internal/errors"
)

// WithLock runs fn while holding the lock for taskID.
//
// If the lock cannot be acquired within maxWait, fn is not run and an error matching
// errors.ErrLockContended is returned (also errors.ErrWaitTimeout when maxWait > 0).
// Otherwise the lock is released after fn returns, fails or panics, even if ctx has
// been canceled; a panic is re-raised after the release. fn's error takes precedence
// over a release error.
func (m *Manager) WithLock(ctx context.Context, taskID, lockedBy string, maxWait time.Duration, fn func(context.Context) error) (err error) {
	ok, err := m.Acquire(ctx, taskID, lockedBy, maxWait)
	if err != nil {
		return err
	}
	if !ok {
		cause := errors.ErrLockContended
		if maxWait > 0 {
			cause = errors.Join(errors.ErrLockContended, errors.ErrWaitTimeout)
		}
		lockErr := errors.NewLockError("task not run", cause).WithTaskID(taskID)
		if rec, infoErr := m.Info(ctx); infoErr == nil && rec.Locked {
			lockErr = lockErr.WithHolder(rec.TaskID, rec.LockedBy)
		}
		return lockErr
	}

	defer func() {
		relErr := m.Release(context.WithoutCancel(ctx), taskID)
		if relErr != nil && err == nil {
			err = errors.Wrapf(relErr, "release after task %s", taskID)
		}
	}()

	return fn(ctx)
}
