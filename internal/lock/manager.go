package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/tasklock/internal/errors"
	"github.com/Iron-Ham/tasklock/internal/logging"
	"github.com/Iron-Ham/tasklock/internal/store"
)

// Manager grants the single persisted lock to one holder at a time.
// All state lives in the store; a Manager may be shared between goroutines, and any
// number of Managers in any number of processes may point at the same store.
type Manager struct {
	store        store.Store
	timeout      time.Duration
	pollInterval time.Duration
	logger       *logging.Logger
	metrics      *Metrics
	now          func() time.Time
	watch        bool
	failClosed   bool

	mu   sync.Mutex
	held string // task ID this Manager acquired and has not yet released
}

// NewManager creates a Manager over st.
func NewManager(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:        st,
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
		logger:       logging.NopLogger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("backend", st.Backend(), "location", st.Location())
	return m
}

// Timeout returns the staleness timeout; <= 0 means locks never go stale.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Stale reports whether rec is a held lock whose holder exceeded the timeout.
func (m *Manager) Stale(rec store.Record) bool {
	return rec.Locked && m.timeout > 0 && rec.Age(m.now()) > m.timeout
}

// IsLocked reports whether the lock is currently held.
//
// A held lock older than the timeout is released as a side effect and reported as
// free. A missing or unreadable record is treated as unlocked and re-initialized.
// If storage cannot be reached the lock is reported free, or held when the Manager
// is fail-closed.
func (m *Manager) IsLocked(ctx context.Context) bool {
	var readFailure error
	rec, err := m.store.Update(ctx, func(cur store.Record, readErr error) (store.Record, bool) {
		if isStorageFailure(readErr) && m.failClosed {
			m.logReadError(readErr, m.logger)
			readFailure = readErr
			return cur, false
		}
		return m.inspect(cur, readErr, m.logger)
	})
	if err != nil {
		m.storageFailure("is_locked", err, m.logger)
		return m.failClosed
	}
	if readFailure != nil {
		return true
	}
	return rec.Locked
}

// Acquire claims the lock for taskID on behalf of lockedBy.
//
// With maxWait == 0 it makes a single attempt. Otherwise it re-checks every poll
// interval, or sooner when the store reports a change, until the lock is claimed or
// maxWait has elapsed. The check and the claim happen atomically in the store, so two
// callers never both succeed.
//
// The returned error is non-nil only for an empty taskID or lockedBy, or when ctx
// ends first.
// Acquire is not reentrant: a holder calling it again for its own lock is contended.
func (m *Manager) Acquire(ctx context.Context, taskID, lockedBy string, maxWait time.Duration) (bool, error) {
	if taskID == "" {
		return false, errors.NewValidationError("task ID is required").WithField("taskID")
	}
	if lockedBy == "" {
		return false, errors.NewValidationError("holder name is required").WithField("lockedBy")
	}

	log := m.logger.WithTask(taskID).WithHolder(lockedBy)
	start := time.Now()
	deadline := start.Add(maxWait)

	var (
		changes   <-chan struct{}
		watching  bool
		contended bool
	)

	for attempt := 1; ; attempt++ {
		res, err := m.tryClaim(ctx, taskID, lockedBy, log)
		if err != nil {
			m.metrics.acquire(OutcomeCanceled, time.Since(start).Seconds())
			return false, err
		}

		if res.claimed {
			m.setHeld(taskID)
			m.metrics.acquire(OutcomeAcquired, time.Since(start).Seconds())
			log.Info("lock acquired",
				"attempts", attempt,
				"waited_ms", time.Since(start).Milliseconds(),
			)
			return true, nil
		}

		holderLog := log.With("holder_task_id", res.holder.TaskID, "holder_locked_by", res.holder.LockedBy)

		if maxWait <= 0 {
			m.metrics.acquire(OutcomeContended, 0)
			holderLog.Info("lock contended", "max_wait", maxWait.String())
			return false, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			m.metrics.acquire(OutcomeTimeout, time.Since(start).Seconds())
			holderLog.Warn("lock wait timed out",
				"attempts", attempt,
				"max_wait", maxWait.String(),
			)
			return false, nil
		}

		if !contended {
			contended = true
			holderLog.Info("lock contended", "max_wait", maxWait.String())
		} else {
			holderLog.Debug("lock contended",
				"attempts", attempt,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}

		if !watching && m.watch {
			watching = true
			if w, ok := m.store.(store.Watcher); ok {
				ch, stop, werr := w.Watch(ctx)
				if werr != nil {
					log.Debug("watch unavailable, polling only", "error", werr.Error())
				} else {
					changes = ch
					defer stop()
				}
			}
		}

		if err := m.wait(ctx, min(m.pollInterval, remaining), changes); err != nil {
			m.metrics.acquire(OutcomeCanceled, time.Since(start).Seconds())
			log.Info("lock wait canceled", "error", err.Error())
			return false, err
		}
	}
}

// wait blocks for d, until a change notification arrives or until ctx ends.
func (m *Manager) wait(ctx context.Context, d time.Duration, changes <-chan struct{}) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-changes:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
	}
}

type claimResult struct {
	claimed bool
	holder  store.Record
}

// tryClaim runs one atomic observe-and-claim. It returns an error only when ctx ended.
func (m *Manager) tryClaim(ctx context.Context, taskID, lockedBy string, log *logging.Logger) (claimResult, error) {
	var res claimResult
	_, err := m.store.Update(ctx, func(cur store.Record, readErr error) (store.Record, bool) {
		if isStorageFailure(readErr) && m.failClosed {
			m.logReadError(readErr, log)
			return cur, false
		}
		next, dirty := m.inspect(cur, readErr, log)
		if next.Locked {
			res.holder = next
			return next, dirty
		}
		res.claimed = true
		return store.Held(taskID, lockedBy, m.now()), true
	})
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return claimResult{}, fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
	}

	m.storageFailure("acquire", err, log)
	if m.failClosed {
		return claimResult{}, nil
	}
	// Liveness over exclusion: the job runs even though the claim was not persisted.
	return claimResult{claimed: true}, nil
}

// Release frees the lock.
//
// Releasing an unlocked record is a no-op. When taskID is non-empty and differs from
// the holder's task ID, the record is left untouched and an error matching
// errors.ErrOwnershipMismatch is returned. An empty taskID releases unconditionally.
// Storage failures are logged and swallowed unless the Manager is fail-closed.
func (m *Manager) Release(ctx context.Context, taskID string) error {
	log := m.logger
	if taskID != "" {
		log = log.WithTask(taskID)
	}

	var (
		outcome string
		holder  store.Record
	)
	_, err := m.store.Update(ctx, func(cur store.Record, readErr error) (store.Record, bool) {
		if readErr != nil {
			m.logReadError(readErr, log)
			if isStorageFailure(readErr) && m.failClosed {
				outcome = OutcomeError
				return cur, false
			}
			outcome = OutcomeNoop
			return store.Unlocked(), true
		}
		if !cur.Locked {
			outcome = OutcomeNoop
			return cur, false
		}
		holder = cur
		if taskID != "" && cur.TaskID != taskID {
			outcome = OutcomeRefused
			return cur, false
		}
		outcome = OutcomeReleased
		return store.Unlocked(), true
	})
	if err != nil {
		m.metrics.release(OutcomeError)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
		}
		m.storageFailure("release", err, log)
		if m.failClosed {
			return errors.Wrap(err, "release failed")
		}
		m.clearHeld(taskID)
		return nil
	}

	m.metrics.release(outcome)
	switch outcome {
	case OutcomeRefused:
		log.Warn("release refused",
			"holder_task_id", holder.TaskID,
			"holder_locked_by", holder.LockedBy,
		)
		return errors.NewLockError("release refused", errors.ErrOwnershipMismatch).
			WithTaskID(taskID).
			WithHolder(holder.TaskID, holder.LockedBy)
	case OutcomeReleased:
		m.clearHeld(taskID)
		log.Info("lock released",
			"holder_task_id", holder.TaskID,
			"holder_locked_by", holder.LockedBy,
			"held_ms", holder.Age(m.now()).Milliseconds(),
		)
	case OutcomeError:
		return errors.NewStorageError("release failed", errors.ErrStorageUnavailable).
			WithBackend(m.store.Backend()).
			WithLocation(m.store.Location())
	default:
		m.clearHeld(taskID)
		log.Debug("release of unlocked record ignored")
	}
	return nil
}

// Info returns the stored record as-is, without staleness evaluation or repair.
// On a read failure it returns the unlocked record together with the error.
func (m *Manager) Info(ctx context.Context) (store.Record, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return store.Unlocked(), err
	}
	return rec, nil
}

// inspect applies staleness recovery and fail-open repair to the record read inside
// an Update. It returns the record that should be considered current and whether it
// must be written back.
func (m *Manager) inspect(cur store.Record, readErr error, log *logging.Logger) (store.Record, bool) {
	if readErr != nil {
		m.logReadError(readErr, log)
		return store.Unlocked(), true
	}
	if m.Stale(cur) {
		m.metrics.staleRecovered()
		age := cur.Age(m.now())
		log.Warn("stale lock released",
			"holder_task_id", cur.TaskID,
			"holder_locked_by", cur.LockedBy,
			"locked_at", cur.LockedAt,
			"age", age.String(),
			"timeout", m.timeout.String(),
			"error", fmt.Errorf("%w: held %s past %s", errors.ErrStaleLock, (age - m.timeout).Truncate(time.Millisecond), m.timeout).Error(),
		)
		return store.Unlocked(), true
	}
	return cur, false
}

func (m *Manager) logReadError(readErr error, log *logging.Logger) {
	switch {
	case errors.Is(readErr, errors.ErrRecordNotFound):
		log.Debug("lock record initialized")
	case errors.Is(readErr, errors.ErrRecordCorrupt):
		log.Warn("lock record unreadable", "error", readErr.Error())
	default:
		m.metrics.storageError("read")
		log.Error("lock storage unavailable", "op", "read", "error", readErr.Error())
	}
}

func (m *Manager) storageFailure(op string, err error, log *logging.Logger) {
	m.metrics.storageError(op)
	log.Error("lock storage unavailable",
		"op", op,
		"fail_closed", m.failClosed,
		"error", err.Error(),
	)
}

func (m *Manager) setHeld(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held = taskID
	m.metrics.setHeld(true)
}

func (m *Manager) clearHeld(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == "" || (taskID != "" && taskID != m.held) {
		return
	}
	m.held = ""
	m.metrics.setHeld(false)
}

// isStorageFailure reports whether a read error means storage was unreachable, as
// opposed to the record being absent or malformed.
func isStorageFailure(readErr error) bool {
	return readErr != nil &&
		!errors.Is(readErr, errors.ErrRecordNotFound) &&
		!errors.Is(readErr, errors.ErrRecordCorrupt)
}
