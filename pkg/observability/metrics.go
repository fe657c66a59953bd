package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sessionstore"

// Backend operation labels.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpExists = "exists"
)

// Metrics holds the session store collectors.
type Metrics struct {
	created       prometheus.Counter
	renewed       prometheus.Counter
	dropped       prometheus.Counter
	collisions    prometheus.Counter
	merges        *prometheus.CounterVec
	backendErrors *prometheus.CounterVec
	lockWait      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created after a cache miss or renewal.",
		}),
		renewed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_renewed_total",
			Help:      "Sessions moved to a new id.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_dropped_total",
			Help:      "Sessions deleted on request.",
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_collisions_total",
			Help:      "Generated session ids that already existed and were redrawn.",
		}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Session writes by merge outcome.",
		}, []string{"result"}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Failed backend operations absorbed by the store.",
		}, []string{"op"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for the session lock.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

// Collectors returns every collector, for custom registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.created, m.renewed, m.dropped, m.collisions,
		m.merges, m.backendErrors, m.lockWait,
	}
}

func (m *Metrics) SessionCreated() {
	if m != nil {
		m.created.Inc()
	}
}

func (m *Metrics) SessionRenewed() {
	if m != nil {
		m.renewed.Inc()
	}
}

func (m *Metrics) SessionDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) IDCollision() {
	if m != nil {
		m.collisions.Inc()
	}
}

// Merge records a write. applied is false when the merge was abandoned.
func (m *Metrics) Merge(applied bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "abandoned"
	}
	m.merges.WithLabelValues(result).Inc()
}

// BackendError records a failed operation, labelled with one of the Op constants.
func (m *Metrics) BackendError(op string) {
	if m != nil {
		m.backendErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m != nil {
		m.lockWait.Observe(d.Seconds())
	}
}
