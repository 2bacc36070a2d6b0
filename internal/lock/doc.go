// Package lock serializes runs of a task pipeline across processes.
//
// A [Manager] guards a single persisted lock record held in a [store.Store]. Any
// number of processes, each with its own Manager pointed at the same store, compete
// for the record; at most one holds it at a time.
//
//	st, _ := store.NewFileStore(".github/.task-lock.json")
//	m := lock.NewManager(st, lock.WithTimeout(time.Hour))
//
//	ok, err := m.Acquire(ctx, "TASK-001", "backend-dev", 5*time.Minute)
//	if err != nil || !ok {
//	    return err
//	}
//	defer m.Release(ctx, "TASK-001")
//
// or, with release guaranteed on every exit path:
//
//	err := m.WithLock(ctx, "TASK-001", "backend-dev", 5*time.Minute, run)
//
// # Staleness
//
// A holder that crashes never releases. Every inspection (IsLocked, and each attempt
// inside Acquire) treats a lock older than the timeout as abandoned and clears it.
// The timeout bounds holding; the per-call maxWait bounds waiting.
//
// # Failure Policy
//
// A missing or malformed record reads as unlocked and is rewritten. When the store
// cannot be reached the Manager fails open: Acquire reports success and Release
// reports nothing, so a storage outage never wedges the pipeline. [WithFailClosed]
// inverts this for deployments that prefer not running to running twice.
//
// # Ordering
//
// Waiters are not queued. When the lock is freed, whichever waiter checks first
// wins, regardless of how long the others have waited.
package lock
