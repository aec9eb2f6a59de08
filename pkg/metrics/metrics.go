// Package metrics wires the core's storage and session-lifecycle events
// into Prometheus collectors, the way pkg/metadata/lock wires locking
// events in the filesystem core this was built from.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for metrics.
const (
	LabelBackend   = "backend"
	LabelOp        = "op"
	LabelStatus    = "status"
	LabelEvent     = "event"
	LabelOperation = "operation"
)

// Blob op constants.
const (
	OpPutInline  = "put_inline"
	OpPutChunked = "put_chunked"
	OpDelete     = "delete"
)

// Blob op status constants.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Upload session lifecycle event constants.
const (
	EventBegun         = "begun"
	EventChunkRejected = "chunk_rejected"
	EventAborted       = "aborted"
	EventFinished      = "finished"
	EventExpired       = "expired"
)

// Metrics provides Prometheus metrics for blob storage, upload session
// lifecycle, and capsule-store operation latency. A nil *Metrics is
// valid and every method on it is a no-op, so callers that never wire a
// registry pay nothing beyond the nil check.
type Metrics struct {
	blobBytesTotal   *prometheus.CounterVec
	blobOpTotal      *prometheus.CounterVec
	sessionEventTotal *prometheus.CounterVec
	capsuleOpDuration *prometheus.HistogramVec

	registered bool
}

// NewMetrics creates and registers core metrics. If registry is nil,
// metrics are created but not registered, which is useful for tests
// that want real observation without a live /metrics endpoint.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		blobBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "capsulecore",
				Subsystem: "blob",
				Name:      "bytes_total",
				Help:      "Total bytes written to or deleted from blob storage",
			},
			[]string{LabelBackend, LabelOp},
		),
		blobOpTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "capsulecore",
				Subsystem: "blob",
				Name:      "ops_total",
				Help:      "Total blob storage operations by backend, op, and outcome",
			},
			[]string{LabelBackend, LabelOp, LabelStatus},
		),
		sessionEventTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "capsulecore",
				Subsystem: "uploads",
				Name:      "session_events_total",
				Help:      "Upload session lifecycle transitions",
			},
			[]string{LabelEvent},
		),
		capsuleOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "capsulecore",
				Subsystem: "capsules",
				Name:      "op_duration_seconds",
				Help:      "Latency of capsule store operations",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{LabelOperation},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.blobBytesTotal,
			m.blobOpTotal,
			m.sessionEventTotal,
			m.capsuleOpDuration,
		)
		m.registered = true
	}

	return m
}

// RecordBlobBytes records the number of bytes moved by a blob op.
func (m *Metrics) RecordBlobBytes(backend, op string, bytes uint64) {
	if m == nil {
		return
	}
	m.blobBytesTotal.WithLabelValues(backend, op).Add(float64(bytes))
}

// RecordBlobOp records a single blob operation's outcome.
func (m *Metrics) RecordBlobOp(backend, op, status string) {
	if m == nil {
		return
	}
	m.blobOpTotal.WithLabelValues(backend, op, status).Inc()
}

// RecordSessionEvent records an upload session lifecycle transition.
func (m *Metrics) RecordSessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEventTotal.WithLabelValues(event).Inc()
}

// RecordSessionEvents records n occurrences of the same transition, for
// batch events like a sweep reaping several expired sessions at once.
func (m *Metrics) RecordSessionEvents(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionEventTotal.WithLabelValues(event).Add(float64(n))
}

// ObserveCapsuleOpDuration records how long a capsule store operation took.
func (m *Metrics) ObserveCapsuleOpDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.capsuleOpDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	if m == nil || !m.registered {
		return
	}
	m.blobBytesTotal.Describe(ch)
	m.blobOpTotal.Describe(ch)
	m.sessionEventTotal.Describe(ch)
	m.capsuleOpDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	if m == nil || !m.registered {
		return
	}
	m.blobBytesTotal.Collect(ch)
	m.blobOpTotal.Collect(ch)
	m.sessionEventTotal.Collect(ch)
	m.capsuleOpDuration.Collect(ch)
}

// ============================================================================
// Package-level access
// ============================================================================
//
// pkg/capsule exposes its operations as package-level functions rather
// than methods on a struct, so there is no receiver to hang a *Metrics
// field off. Global mirrors the same seam lock.SetGlobalMetrics uses for
// its own package-level cross-protocol functions.

var global *Metrics

// SetGlobalMetrics sets the instance package-level capsule operations
// report to. Safe to leave unset: every reporting function below treats
// a nil global as a no-op.
func SetGlobalMetrics(m *Metrics) {
	global = m
}

// ObserveCapsuleOpDuration is the package-level mirror of
// (*Metrics).ObserveCapsuleOpDuration, reporting against the global
// instance set by SetGlobalMetrics.
func ObserveCapsuleOpDuration(operation string, d time.Duration) {
	global.ObserveCapsuleOpDuration(operation, d)
}
