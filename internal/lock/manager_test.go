package lock

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/tasklock/internal/errors"
	"github.com/Iron-Ham/tasklock/internal/logging"
	"github.com/Iron-Ham/tasklock/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// faultyStore injects storage failures in front of a working store.
type faultyStore struct {
	store.Store
	updateErr error // returned without running fn
	readErr   error // handed to fn in place of the stored record
}

func (f *faultyStore) Update(ctx context.Context, fn store.UpdateFunc) (store.Record, error) {
	if f.updateErr != nil {
		return store.Unlocked(), f.updateErr
	}
	if f.readErr != nil {
		return f.Store.Update(ctx, func(_ store.Record, _ error) (store.Record, bool) {
			return fn(store.Unlocked(), f.readErr)
		})
	}
	return f.Store.Update(ctx, fn)
}

func newTestStore(t *testing.T) *store.FileStore {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), ".github", ".task-lock.json"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// openStore opens a second FileStore on the same path, as another process would.
func openStore(t *testing.T, path string) *store.FileStore {
	t.Helper()
	st, err := store.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func unavailable() error {
	return errors.NewStorageError("unreachable", io.ErrUnexpectedEOF).WithBackend(store.BackendFile)
}

func TestAcquireRelease_Alternates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m := NewManager(st)

	for i := 0; i < 3; i++ {
		ok, err := m.Acquire(ctx, "T1", "architect", 0)
		if err != nil || !ok {
			t.Fatalf("round %d: Acquire = %v, %v; want true, nil", i, ok, err)
		}
		rec, err := m.Info(ctx)
		if err != nil {
			t.Fatalf("Info failed: %v", err)
		}
		if !rec.Locked || rec.TaskID != "T1" || rec.LockedBy != "architect" || rec.LockedAt.IsZero() {
			t.Errorf("round %d: record after acquire = %+v", i, rec)
		}

		if err := m.Release(ctx, "T1"); err != nil {
			t.Fatalf("round %d: Release failed: %v", i, err)
		}
		if rec, _ := m.Info(ctx); rec != store.Unlocked() {
			t.Errorf("round %d: record after release = %+v", i, rec)
		}
	}
}

func TestAcquire_NoWaitAttempt(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	a := NewManager(st)
	b := NewManager(openStore(t, st.Location()))

	if ok, _ := a.Acquire(ctx, "T1", "a", 0); !ok {
		t.Fatal("first acquire should succeed on an unlocked record")
	}

	start := time.Now()
	ok, err := b.Acquire(ctx, "T2", "b", 0)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if ok {
		t.Error("no-wait attempt should fail while another holder has the lock")
	}
	// The default poll interval is 10s; a no-wait attempt must not sleep at all.
	if elapsed > time.Second {
		t.Errorf("no-wait attempt took %v, expected no blocking", elapsed)
	}
}

func TestAcquire_RequiresTaskAndHolder(t *testing.T) {
	tests := []struct {
		name     string
		taskID   string
		lockedBy string
	}{
		{"empty task ID", "", "a"},
		{"empty holder", "T1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(newTestStore(t))

			ok, err := m.Acquire(context.Background(), tt.taskID, tt.lockedBy, 0)
			if ok {
				t.Error("Acquire should fail")
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
			rec, _ := m.Info(context.Background())
			if rec.Locked {
				t.Errorf("record written despite invalid input: %+v", rec)
			}
		})
	}
}

func TestAcquire_NotReentrant(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newTestStore(t))

	if ok, _ := m.Acquire(ctx, "T1", "a", 0); !ok {
		t.Fatal("first acquire should succeed")
	}
	if ok, _ := m.Acquire(ctx, "T1", "a", 0); ok {
		t.Error("second acquire by the same holder should be contended")
	}
}

func TestScenario_HandOff(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	a := NewManager(st)
	b := NewManager(openStore(t, st.Location()))

	if ok, _ := a.Acquire(ctx, "A", "holder-a", 0); !ok {
		t.Fatal("A should acquire")
	}
	if ok, _ := b.Acquire(ctx, "B", "holder-b", 0); ok {
		t.Fatal("B should fail while A holds")
	}
	if err := a.Release(ctx, "A"); err != nil {
		t.Fatalf("A release failed: %v", err)
	}
	if ok, _ := b.Acquire(ctx, "B", "holder-b", 0); !ok {
		t.Error("B should acquire after A released")
	}
}

func TestIsLocked(t *testing.T) {
	ctx := context.Background()

	t.Run("unlocked", func(t *testing.T) {
		m := NewManager(newTestStore(t))
		if m.IsLocked(ctx) {
			t.Error("fresh record should be unlocked")
		}
	})

	t.Run("held", func(t *testing.T) {
		m := NewManager(newTestStore(t))
		_, _ = m.Acquire(ctx, "T1", "a", 0)
		if !m.IsLocked(ctx) {
			t.Error("IsLocked should report a held lock")
		}
	})

	t.Run("missing record is initialized", func(t *testing.T) {
		st := newTestStore(t)
		m := NewManager(st)

		if m.IsLocked(ctx) {
			t.Error("missing record should read as unlocked")
		}
		if _, err := os.Stat(st.Location()); err != nil {
			t.Errorf("record should be created: %v", err)
		}
	})

	t.Run("corrupt record is reset", func(t *testing.T) {
		st := newTestStore(t)
		if err := os.WriteFile(st.Location(), []byte(`{"locked": true, "taskId": "T1", "lockedAt": null, "lockedBy": "x"}`), 0644); err != nil {
			t.Fatal(err)
		}
		m := NewManager(st)

		if m.IsLocked(ctx) {
			t.Error("corrupt record should read as unlocked")
		}
		rec, err := st.Load(ctx)
		if err != nil {
			t.Fatalf("record should be readable after reset: %v", err)
		}
		if rec.Locked {
			t.Errorf("record should be reset to unlocked, got %+v", rec)
		}
	})
}

func TestStaleness(t *testing.T) {
	ctx := context.Background()
	const ttl = time.Minute

	t.Run("inspection past the timeout releases", func(t *testing.T) {
		clock := newFakeClock()
		st := newTestStore(t)
		m := NewManager(st, WithTimeout(ttl), WithClock(clock.Now))

		if ok, _ := m.Acquire(ctx, "T1", "a", 0); !ok {
			t.Fatal("acquire should succeed")
		}

		clock.Advance(ttl)
		if !m.IsLocked(ctx) {
			t.Error("lock exactly at the timeout is not yet stale")
		}

		clock.Advance(time.Millisecond)
		if m.IsLocked(ctx) {
			t.Error("lock past the timeout should be released")
		}
		if rec, _ := m.Info(ctx); rec.Locked {
			t.Errorf("record should be reset, got %+v", rec)
		}
	})

	t.Run("recovery is logged as a stale lock", func(t *testing.T) {
		clock := newFakeClock()
		var buf bytes.Buffer
		m := NewManager(newTestStore(t),
			WithTimeout(ttl),
			WithClock(clock.Now),
			WithLogger(logging.NewWriterLogger(&buf, logging.LevelWarn)),
		)

		if ok, _ := m.Acquire(ctx, "T1", "a", 0); !ok {
			t.Fatal("acquire should succeed")
		}
		clock.Advance(ttl + time.Second)
		if m.IsLocked(ctx) {
			t.Fatal("lock past the timeout should be released")
		}

		out := buf.String()
		for _, want := range []string{`"msg":"stale lock released"`, errors.ErrStaleLock.Error(), `"holder_task_id":"T1"`} {
			if !strings.Contains(out, want) {
				t.Errorf("log missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("crashed holder is taken over", func(t *testing.T) {
		clock := newFakeClock()
		st := newTestStore(t)
		a := NewManager(st, WithTimeout(ttl), WithClock(clock.Now))
		b := NewManager(openStore(t, st.Location()), WithTimeout(ttl), WithClock(clock.Now))

		if ok, _ := a.Acquire(ctx, "A", "crashed", 0); !ok {
			t.Fatal("A should acquire")
		}
		clock.Advance(ttl + time.Second)

		if b.IsLocked(ctx) {
			t.Error("B should observe the stale lock as free")
		}
		if ok, _ := b.Acquire(ctx, "B", "b", 0); !ok {
			t.Error("B should acquire after staleness recovery")
		}
	})

	t.Run("acquire recovers stale lock directly", func(t *testing.T) {
		clock := newFakeClock()
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)
		st := newTestStore(t)
		m := NewManager(st, WithTimeout(ttl), WithClock(clock.Now), WithMetrics(metrics))

		_, _ = m.Acquire(ctx, "A", "a", 0)
		clock.Advance(2 * ttl)

		ok, _ := m.Acquire(ctx, "B", "b", 0)
		if !ok {
			t.Fatal("acquire should take over a stale lock")
		}
		if rec, _ := m.Info(ctx); rec.TaskID != "B" || !rec.LockedAt.Equal(clock.Now()) {
			t.Errorf("record = %+v, want B at %v", rec, clock.Now())
		}
		if got := testutil.ToFloat64(metrics.staleRecoveries); got != 1 {
			t.Errorf("stale recoveries = %v, want 1", got)
		}
	})

	t.Run("zero timeout disables staleness", func(t *testing.T) {
		clock := newFakeClock()
		m := NewManager(newTestStore(t), WithTimeout(0), WithClock(clock.Now))

		_, _ = m.Acquire(ctx, "A", "a", 0)
		clock.Advance(24 * 365 * time.Hour)
		if !m.IsLocked(ctx) {
			t.Error("lock should never go stale with timeout 0")
		}
	})

	t.Run("record with zone-less timestamp", func(t *testing.T) {
		st := newTestStore(t)
		legacy := `{"locked": true, "taskId": "TEST-004", "lockedAt": "2024-03-01T12:34:56.789012", "lockedBy": "user-3"}`
		if err := os.WriteFile(st.Location(), []byte(legacy), 0644); err != nil {
			t.Fatal(err)
		}
		m := NewManager(st, WithTimeout(time.Hour))

		rec, err := m.Info(ctx)
		if err != nil {
			t.Fatalf("Info failed: %v", err)
		}
		if rec.TaskID != "TEST-004" || !m.Stale(rec) {
			t.Errorf("legacy record = %+v, stale = %v", rec, m.Stale(rec))
		}
		if m.IsLocked(ctx) {
			t.Error("legacy lock from 2024 should be stale")
		}
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("ownership mismatch leaves record", func(t *testing.T) {
		m := NewManager(newTestStore(t))
		_, _ = m.Acquire(ctx, "A", "holder-a", 0)
		before, _ := m.Info(ctx)

		err := m.Release(ctx, "B")
		if !errors.Is(err, errors.ErrOwnershipMismatch) {
			t.Fatalf("Release error = %v, want ErrOwnershipMismatch", err)
		}
		var lockErr *errors.LockError
		if !errors.As(err, &lockErr) || lockErr.HolderID != "A" || lockErr.HeldBy != "holder-a" {
			t.Errorf("expected LockError naming the holder, got %v", err)
		}
		if after, _ := m.Info(ctx); after != before {
			t.Errorf("record changed: %+v -> %+v", before, after)
		}
	})

	t.Run("empty task ID releases unconditionally", func(t *testing.T) {
		m := NewManager(newTestStore(t))
		_, _ = m.Acquire(ctx, "A", "holder-a", 0)

		if err := m.Release(ctx, ""); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		if m.IsLocked(ctx) {
			t.Error("lock should be released")
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		m := NewManager(newTestStore(t))
		_, _ = m.Acquire(ctx, "A", "a", 0)

		for i := 0; i < 2; i++ {
			if err := m.Release(ctx, "A"); err != nil {
				t.Fatalf("Release #%d failed: %v", i+1, err)
			}
			if rec, _ := m.Info(ctx); rec != store.Unlocked() {
				t.Errorf("Release #%d left %+v", i+1, rec)
			}
		}
	})

	t.Run("corrupt record is reset", func(t *testing.T) {
		st := newTestStore(t)
		if err := os.WriteFile(st.Location(), []byte("{"), 0644); err != nil {
			t.Fatal(err)
		}
		m := NewManager(st)

		if err := m.Release(ctx, "A"); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		if _, err := st.Load(ctx); err != nil {
			t.Errorf("record should be rewritten: %v", err)
		}
	})
}

func TestInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("does not repair", func(t *testing.T) {
		st := newTestStore(t)
		m := NewManager(st)

		rec, err := m.Info(ctx)
		if !errors.Is(err, errors.ErrRecordNotFound) {
			t.Errorf("Info error = %v, want ErrRecordNotFound", err)
		}
		if rec.Locked {
			t.Error("Info should return unlocked on read failure")
		}
		if _, err := os.Stat(st.Location()); !os.IsNotExist(err) {
			t.Error("Info must not write the record")
		}
	})

	t.Run("does not evaluate staleness", func(t *testing.T) {
		clock := newFakeClock()
		m := NewManager(newTestStore(t), WithTimeout(time.Minute), WithClock(clock.Now))
		_, _ = m.Acquire(ctx, "A", "a", 0)
		clock.Advance(time.Hour)

		rec, err := m.Info(ctx)
		if err != nil {
			t.Fatalf("Info failed: %v", err)
		}
		if !rec.Locked || !m.Stale(rec) {
			t.Errorf("Info should return the stale record as stored, got %+v", rec)
		}
	})
}

func TestAcquire_Waiting(t *testing.T) {
	ctx := context.Background()

	t.Run("acquires once the holder releases", func(t *testing.T) {
		st := newTestStore(t)
		a := NewManager(st)
		b := NewManager(openStore(t, st.Location()), WithPollInterval(20*time.Millisecond))

		_, _ = a.Acquire(ctx, "A", "a", 0)
		go func() {
			time.Sleep(60 * time.Millisecond)
			_ = a.Release(ctx, "A")
		}()

		ok, err := b.Acquire(ctx, "B", "b", 5*time.Second)
		if err != nil || !ok {
			t.Fatalf("Acquire = %v, %v; want true, nil", ok, err)
		}
	})

	t.Run("times out", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)
		st := newTestStore(t)
		a := NewManager(st)
		b := NewManager(openStore(t, st.Location()), WithPollInterval(20*time.Millisecond), WithMetrics(metrics))

		_, _ = a.Acquire(ctx, "A", "a", 0)

		const maxWait = 100 * time.Millisecond
		start := time.Now()
		ok, err := b.Acquire(ctx, "B", "b", maxWait)
		elapsed := time.Since(start)
		if err != nil {
			t.Fatalf("Acquire returned error: %v", err)
		}
		if ok {
			t.Fatal("Acquire should time out")
		}
		if elapsed < maxWait {
			t.Errorf("gave up after %v, before maxWait %v", elapsed, maxWait)
		}
		if elapsed > 2*time.Second {
			t.Errorf("waited %v, far beyond maxWait", elapsed)
		}
		if got := testutil.ToFloat64(metrics.acquires.WithLabelValues(OutcomeTimeout)); got != 1 {
			t.Errorf("timeout outcomes = %v, want 1", got)
		}
	})

	t.Run("poll wait is capped to maxWait", func(t *testing.T) {
		st := newTestStore(t)
		a := NewManager(st)
		b := NewManager(openStore(t, st.Location()), WithPollInterval(time.Hour))
		_, _ = a.Acquire(ctx, "A", "a", 0)

		start := time.Now()
		if ok, _ := b.Acquire(ctx, "B", "b", 50*time.Millisecond); ok {
			t.Fatal("Acquire should time out")
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("waited %v with a 50ms maxWait", elapsed)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		st := newTestStore(t)
		a := NewManager(st)
		b := NewManager(openStore(t, st.Location()), WithPollInterval(time.Hour))
		_, _ = a.Acquire(ctx, "A", "a", 0)

		cctx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()

		ok, err := b.Acquire(cctx, "B", "b", time.Minute)
		if ok {
			t.Error("canceled Acquire should not succeed")
		}
		if !errors.Is(err, errors.ErrCanceled) || !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want ErrCanceled wrapping context.Canceled", err)
		}
	})

	t.Run("watch wakes the waiter early", func(t *testing.T) {
		st := newTestStore(t)
		a := NewManager(st)
		b := NewManager(openStore(t, st.Location()), WithPollInterval(time.Hour), WithWatch(true))

		_, _ = a.Acquire(ctx, "A", "a", 0)
		go func() {
			time.Sleep(100 * time.Millisecond)
			_ = a.Release(ctx, "A")
		}()

		start := time.Now()
		ok, err := b.Acquire(ctx, "B", "b", 10*time.Second)
		if err != nil || !ok {
			t.Fatalf("Acquire = %v, %v; want true, nil", ok, err)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("waiter woke after %v, expected a change notification", elapsed)
		}
	})
}

func TestAcquire_ConcurrentFileStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".task-lock.json")
	const contenders = 12

	var mu sync.Mutex
	winners := 0

	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		g.Go(func() error {
			st, err := store.NewFileStore(path)
			if err != nil {
				return err
			}
			defer st.Close()

			ok, err := NewManager(st).Acquire(context.Background(), "task", "worker", 0)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestAcquire_ConcurrentRedisStores(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()

	const contenders = 8
	var mu sync.Mutex
	winners := 0

	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		g.Go(func() error {
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			st := store.NewRedisStore(client, "", store.WithOwnedClient())
			defer st.Close()

			ok, err := NewManager(st).Acquire(context.Background(), "task", "worker", 0)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

// A process that hangs while holding the file guard must not stall a no-wait attempt.
func TestAcquire_NoWait_GuardHeldByHungProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".task-lock.json")
	hung := openStore(t, path)

	held := make(chan struct{})
	releaseGuard := make(chan struct{})
	go func() {
		_, _ = hung.Update(context.Background(), func(cur store.Record, _ error) (store.Record, bool) {
			close(held)
			<-releaseGuard
			return cur, false
		})
	}()
	<-held
	defer close(releaseGuard)

	newStore := func(t *testing.T) store.Store {
		st, err := store.NewFileStore(path, store.WithGuardTimeout(50*time.Millisecond))
		if err != nil {
			t.Fatalf("NewFileStore failed: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	}

	tests := []struct {
		name       string
		failClosed bool
		want       bool
	}{
		{"fail open grants", false, true},
		{"fail closed denies", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(newStore(t), WithFailClosed(tt.failClosed))

			start := time.Now()
			ok, err := m.Acquire(context.Background(), "T2", "b", 0)
			if err != nil {
				t.Fatalf("Acquire failed: %v", err)
			}
			if ok != tt.want {
				t.Errorf("Acquire = %v, want %v", ok, tt.want)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("no-wait Acquire blocked for %v", elapsed)
			}
		})
	}
}

func TestStorageFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("fail open", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)
		fs := &faultyStore{Store: newTestStore(t), updateErr: unavailable()}
		m := NewManager(fs, WithMetrics(metrics))

		ok, err := m.Acquire(ctx, "T1", "a", time.Minute)
		if err != nil || !ok {
			t.Errorf("Acquire = %v, %v; want true, nil when storage is down", ok, err)
		}
		if err := m.Release(ctx, "T1"); err != nil {
			t.Errorf("Release = %v, want nil when storage is down", err)
		}
		if m.IsLocked(ctx) {
			t.Error("IsLocked should report unlocked when storage is down")
		}
		if got := testutil.ToFloat64(metrics.storageErrors.WithLabelValues("acquire")); got != 1 {
			t.Errorf("acquire storage errors = %v, want 1", got)
		}
	})

	t.Run("fail closed", func(t *testing.T) {
		fs := &faultyStore{Store: newTestStore(t), updateErr: unavailable()}
		m := NewManager(fs, WithFailClosed(true), WithPollInterval(10*time.Millisecond))

		ok, err := m.Acquire(ctx, "T1", "a", 50*time.Millisecond)
		if err != nil || ok {
			t.Errorf("Acquire = %v, %v; want false, nil", ok, err)
		}
		if err := m.Release(ctx, "T1"); !errors.Is(err, errors.ErrStorageUnavailable) {
			t.Errorf("Release = %v, want ErrStorageUnavailable", err)
		}
		if !m.IsLocked(ctx) {
			t.Error("IsLocked should report locked when storage is down")
		}
	})

	t.Run("fail closed on unreadable storage", func(t *testing.T) {
		backing := newTestStore(t)
		fs := &faultyStore{Store: backing, readErr: unavailable()}
		m := NewManager(fs, WithFailClosed(true))

		if ok, _ := m.Acquire(ctx, "T1", "a", 0); ok {
			t.Error("Acquire should not claim when the record cannot be read")
		}
		if !m.IsLocked(ctx) {
			t.Error("IsLocked should report locked when the record cannot be read")
		}
		if _, err := os.Stat(backing.Location()); !os.IsNotExist(err) {
			t.Error("record must not be rewritten after a read failure when fail-closed")
		}
	})

	t.Run("fail open on unreadable storage reinitializes", func(t *testing.T) {
		backing := newTestStore(t)
		fs := &faultyStore{Store: backing, readErr: unavailable()}
		m := NewManager(fs)

		if m.IsLocked(ctx) {
			t.Error("IsLocked should report unlocked")
		}
		rec, err := backing.Load(ctx)
		if err != nil || rec.Locked {
			t.Errorf("record should be re-initialized to unlocked, got %+v, %v", rec, err)
		}
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	st := newTestStore(t)
	a := NewManager(st, WithMetrics(metrics))
	b := NewManager(openStore(t, st.Location()))

	_, _ = a.Acquire(ctx, "A", "a", 0)
	if got := testutil.ToFloat64(metrics.held); got != 1 {
		t.Errorf("held = %v, want 1", got)
	}
	_, _ = a.Acquire(ctx, "X", "x", 0)
	_ = a.Release(ctx, "X")
	_ = a.Release(ctx, "A")
	_ = a.Release(ctx, "A")
	_, _ = b.Acquire(ctx, "B", "b", 0)
	_, _ = a.Acquire(ctx, "A", "a", 0)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"acquired", metrics.acquires.WithLabelValues(OutcomeAcquired), 1},
		{"contended", metrics.acquires.WithLabelValues(OutcomeContended), 2},
		{"refused", metrics.releases.WithLabelValues(OutcomeRefused), 1},
		{"released", metrics.releases.WithLabelValues(OutcomeReleased), 1},
		{"noop", metrics.releases.WithLabelValues(OutcomeNoop), 1},
		{"held", metrics.held, 0},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}

	if count := testutil.CollectAndCount(metrics.waitSeconds); count != 1 {
		t.Errorf("wait histogram series = %d, want 1", count)
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	NewMetrics(reg)
}
