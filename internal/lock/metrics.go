package lock

import "github.com/prometheus/client_golang/prometheus"

// Acquire outcomes.
const (
	OutcomeAcquired  = "acquired"
	OutcomeContended = "contended"
	OutcomeTimeout   = "timeout"
	OutcomeCanceled  = "canceled"
)

// Release outcomes.
const (
	OutcomeReleased = "released"
	OutcomeNoop     = "noop"
	OutcomeRefused  = "refused"
	OutcomeError    = "error"
)

// Metrics holds the prometheus collectors for a Manager. A nil *Metrics records nothing.
type Metrics struct {
	acquires        *prometheus.CounterVec
	releases        *prometheus.CounterVec
	staleRecoveries prometheus.Counter
	storageErrors   *prometheus.CounterVec
	waitSeconds     prometheus.Histogram
	held            prometheus.Gauge
}

// NewMetrics creates the lock collectors and registers them on reg when reg is non-nil.
// Registering twice on the same registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasklock_acquire_total",
			Help: "Acquire attempts by outcome",
		}, []string{"outcome"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasklock_release_total",
			Help: "Release calls by outcome",
		}, []string{"outcome"}),
		staleRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasklock_stale_recoveries_total",
			Help: "Locks released because their holder exceeded the timeout",
		}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasklock_storage_errors_total",
			Help: "Lock record storage failures by operation",
		}, []string{"op"}),
		waitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tasklock_acquire_wait_seconds",
			Help:    "Time spent in Acquire before it returned",
			Buckets: []float64{0.01, 0.1, 1, 10, 30, 60, 120, 300, 600},
		}),
		held: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasklock_held",
			Help: "1 while this process holds the lock",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.acquires, m.releases, m.staleRecoveries, m.storageErrors, m.waitSeconds, m.held)
	}
	return m
}

func (m *Metrics) acquire(outcome string, waitSeconds float64) {
	if m == nil {
		return
	}
	m.acquires.WithLabelValues(outcome).Inc()
	m.waitSeconds.Observe(waitSeconds)
}

func (m *Metrics) release(outcome string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(outcome).Inc()
}

func (m *Metrics) staleRecovered() {
	if m == nil {
		return
	}
	m.staleRecoveries.Inc()
}

func (m *Metrics) storageError(op string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) setHeld(held bool) {
	if m == nil {
		return
	}
	if held {
		m.held.Set(1)
	} else {
		m.held.Set(0)
	}
}
