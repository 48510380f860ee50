// Package metrics provides Prometheus instrumentation for the lease manager
// and task dispatcher, plus the standalone /metrics HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for metrics.
const (
	LabelService   = "service"
	LabelMethod    = "method"
	LabelPath      = "path"
	LabelStatus    = "status"
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
	LabelState     = "state"
)

// Operation constants for lease counters.
const (
	OpAcquire = "acquire"
	OpRenew   = "renew"
	OpRelease = "release"
)

// Operation constants for task counters.
const (
	OpCreate    = "create"
	OpClaim     = "claim"
	OpHeartbeat = "heartbeat"
	OpComplete  = "complete"
	OpAbandon   = "abandon"
)

// Outcome constants shared by lease and task counters.
const (
	OutcomeOK       = "ok"
	OutcomeNone     = "none"
	OutcomeConflict = "conflict"
	OutcomeExpired  = "expired"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics provides Prometheus metrics for the HTTP surface and the lease
// and task state machines.
type Metrics struct {
	// HTTP surface
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Lease operations and state
	leaseOpsTotal *prometheus.CounterVec
	leasesByState *prometheus.GaugeVec

	// Task operations and backlog
	taskOpsTotal *prometheus.CounterVec
	tasksBacklog prometheus.Gauge

	// Flag to track if metrics are registered
	registered bool
}

// NewMetrics creates and registers the service metrics.
// If registry is nil, metrics will be created but not registered (useful for testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tasklease",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{LabelService, LabelMethod, LabelPath, LabelStatus},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tasklease",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{LabelService, LabelMethod, LabelPath},
		),

		leaseOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tasklease",
				Subsystem: "leases",
				Name:      "operations_total",
				Help:      "Total number of lease operations by outcome",
			},
			[]string{LabelOperation, LabelOutcome},
		),

		leasesByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tasklease",
				Subsystem: "leases",
				Name:      "by_state",
				Help:      "Number of leases per derived state, sampled by the state monitor",
			},
			[]string{LabelState},
		),

		taskOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tasklease",
				Subsystem: "tasks",
				Name:      "operations_total",
				Help:      "Total number of task operations by outcome",
			},
			[]string{LabelOperation, LabelOutcome},
		),

		tasksBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tasklease",
				Subsystem: "tasks",
				Name:      "backlog",
				Help:      "Number of unfinished tasks, sampled by the state monitor",
			},
		),
	}

	// Register with registry if provided
	if registry != nil {
		registry.MustRegister(
			m.httpRequestsTotal,
			m.httpRequestDuration,
			m.leaseOpsTotal,
			m.leasesByState,
			m.taskOpsTotal,
			m.tasksBacklog,
		)
		m.registered = true
	}

	return m
}

// ObserveHTTPRequest records one handled HTTP request.
func (m *Metrics) ObserveHTTPRequest(service, method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// ObserveLeaseOp records a lease operation outcome.
func (m *Metrics) ObserveLeaseOp(op, outcome string) {
	if m == nil {
		return
	}
	m.leaseOpsTotal.WithLabelValues(op, outcome).Inc()
}

// SetLeasesByState sets the sampled lease count for one derived state.
func (m *Metrics) SetLeasesByState(state string, count float64) {
	if m == nil {
		return
	}
	m.leasesByState.WithLabelValues(state).Set(count)
}

// ObserveTaskOp records a task operation outcome.
func (m *Metrics) ObserveTaskOp(op, outcome string) {
	if m == nil {
		return
	}
	m.taskOpsTotal.WithLabelValues(op, outcome).Inc()
}

// SetTasksBacklog sets the sampled count of unfinished tasks.
func (m *Metrics) SetTasksBacklog(count float64) {
	if m == nil {
		return
	}
	m.tasksBacklog.Set(count)
}
