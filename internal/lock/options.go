package lock

import (
	"time"

	"github.com/Iron-Ham/tasklock/internal/logging"
)

// Defaults for a Manager built without options.
const (
	DefaultTimeout      = time.Hour
	DefaultPollInterval = 10 * time.Second
)

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets how long a holder may keep the lock before it is considered
// stale. A value <= 0 disables staleness recovery.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithPollInterval sets how often a waiting Acquire re-checks the record.
// Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records lock activity on metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithClock replaces time.Now for lockedAt stamps and staleness checks.
// Waiting still uses real timers.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithWatch enables early wake-ups while waiting when the store can report changes.
func WithWatch(enabled bool) Option {
	return func(m *Manager) {
		m.watch = enabled
	}
}

// WithFailClosed makes storage failures deny the lock instead of granting it.
func WithFailClosed(enabled bool) Option {
	return func(m *Manager) {
		m.failClosed = enabled
	}
}
