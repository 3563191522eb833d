// Package telemetry exports renderer metrics to Prometheus and traces
// batches with OpenTelemetry.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/vrender/pkg/protocol"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vrender").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for batch duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures Metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the batch duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vrender",
		// Batches are expected to apply well under a frame.
		Buckets:  []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		Registry: prometheus.DefaultRegisterer,
	}
}

// Metrics records renderer activity. It implements the interpreter and
// delegation recorder interfaces.
type Metrics struct {
	batches      *prometheus.CounterVec
	batchSeconds prometheus.Histogram
	instructions *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	violations   *prometheus.CounterVec
	events       *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	liveNodes    prometheus.Gauge
}

// NewMetrics registers the renderer collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batches_total",
			Help:        "Total number of mutation batches by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		batchSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_duration_seconds",
			Help:        "Time spent applying one mutation batch",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		instructions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "instructions_total",
			Help:        "Total number of mutation instructions applied by op",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "instructions_skipped_total",
			Help:        "Instructions skipped because the DOM rejected them",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "protocol_violations_total",
			Help:        "Batches aborted by a protocol violation, by error code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Synthetic events queued for the engine by category",
			ConstLabels: config.ConstLabels,
		}, []string{"category"}),

		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_dropped_total",
			Help:        "Native events that produced no synthetic event, by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		liveNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_nodes",
			Help:        "Nodes currently registered",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) InstructionApplied(op protocol.Op) {
	m.instructions.WithLabelValues(op.String()).Inc()
}

func (m *Metrics) InstructionSkipped(op protocol.Op) {
	m.skipped.WithLabelValues(op.String()).Inc()
}

func (m *Metrics) ProtocolViolation(code string) {
	m.violations.WithLabelValues(code).Inc()
}

func (m *Metrics) EventDispatched(category string) {
	m.events.WithLabelValues(category).Inc()
}

// EventDropped counts by reason only; categories of dropped events are
// unbounded.
func (m *Metrics) EventDropped(_ string, reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

// BatchApplied records one batch. status is "ok", "violation" or
// "rejected".
func (m *Metrics) BatchApplied(status string, d time.Duration, live int) {
	m.batches.WithLabelValues(status).Inc()
	m.batchSeconds.Observe(d.Seconds())
	m.liveNodes.Set(float64(live))
}
