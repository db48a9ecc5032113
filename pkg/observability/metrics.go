// Package observability holds the Prometheus metrics for the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects pipeline and delivery metrics.
//
// Nil-safe: all recording methods are no-ops on a nil receiver, so
// components can run without metrics wired (tests, library use).
type Metrics struct {
	// RequestsStarted counts pipeline runs entering execution, including
	// retries.
	RequestsStarted prometheus.Counter

	// RequestsFinished counts terminal outcomes. Labels: status
	// (completed|failed).
	RequestsFinished *prometheus.CounterVec

	// ActiveRequests tracks runs currently executing.
	ActiveRequests prometheus.Gauge

	// StepDuration measures step execution time in seconds. Labels: step.
	// Steps are sequences of adapter calls, so this is also the adapter
	// latency view.
	StepDuration *prometheus.HistogramVec

	// StepFailures counts failed steps. Labels: step, kind (error kind).
	StepFailures *prometheus.CounterVec

	// NotifierDeliveries counts done-notification targets. Labels: target
	// (channel|conversation), outcome (ok|error|skipped).
	NotifierDeliveries *prometheus.CounterVec

	// WSConnections tracks open WebSocket connections.
	WSConnections prometheus.Gauge

	// SubscriberDrops counts snapshots dropped on full subscriber buffers.
	SubscriberDrops prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
// Call once at startup with the registry the /metrics endpoint serves.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskbridge_requests_started_total",
			Help: "Pipeline runs started, including retries",
		}),
		RequestsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deskbridge_requests_finished_total",
			Help: "Pipeline runs finished by terminal status",
		}, []string{"status"}),
		ActiveRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "deskbridge_active_requests",
			Help: "Pipeline runs currently executing",
		}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deskbridge_step_duration_seconds",
			Help:    "Step execution time in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		StepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deskbridge_step_failures_total",
			Help: "Failed steps by step and error kind",
		}, []string{"step", "kind"}),
		NotifierDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deskbridge_notifier_deliveries_total",
			Help: "Done-notification deliveries by target and outcome",
		}, []string{"target", "outcome"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "deskbridge_ws_connections",
			Help: "Open WebSocket connections",
		}),
		SubscriberDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskbridge_subscriber_dropped_total",
			Help: "Snapshots dropped because a subscriber buffer was full",
		}),
	}
}

// RunStarted records a pipeline run entering execution.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RequestsStarted.Inc()
	m.ActiveRequests.Inc()
}

// RunFinished records a terminal outcome.
func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.RequestsFinished.WithLabelValues(status).Inc()
	m.ActiveRequests.Dec()
}

// ObserveStep records a step's execution time.
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// StepFailed records a failed step with its error kind.
func (m *Metrics) StepFailed(step, kind string) {
	if m == nil {
		return
	}
	m.StepFailures.WithLabelValues(step, kind).Inc()
}

// NotifierDelivery records one done-notification target outcome.
func (m *Metrics) NotifierDelivery(target, outcome string) {
	if m == nil {
		return
	}
	m.NotifierDeliveries.WithLabelValues(target, outcome).Inc()
}

// WSConnected / WSDisconnected track the connection gauge.
func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// SubscriberDropped records a snapshot dropped on a full buffer.
func (m *Metrics) SubscriberDropped() {
	if m == nil {
		return
	}
	m.SubscriberDrops.Inc()
}
