package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus collectors that report orchestrator activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsProcessed  *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	classifications  *prometheus.CounterVec
	escalations      *prometheus.CounterVec
	workflowTriggers *prometheus.CounterVec
	intakeQueueDepth prometheus.Gauge
	registry         prometheus.Gatherer
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests should pass a fresh prometheus.NewRegistry(). Registration errors
// other than AlreadyRegistered panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		eventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orchestrator",
				Name:      "events_processed_total",
				Help:      "Events that reached a terminal status, by event type and status.",
			},
			[]string{"event_type", "status"},
		),
		pipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "orchestrator",
				Name:      "pipeline_duration_seconds",
				Help:      "Time from interaction creation to terminal status.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orchestrator",
				Subsystem: "classifier",
				Name:      "verdicts_total",
				Help:      "Classification verdicts by intent and origin (oracle or fallback).",
			},
			[]string{"intent", "origin"},
		),
		escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orchestrator",
				Name:      "escalations_total",
				Help:      "Escalations raised, by priority.",
			},
			[]string{"priority"},
		),
		workflowTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orchestrator",
				Subsystem: "workflow",
				Name:      "triggers_total",
				Help:      "Workflow trigger attempts, by workflow name and outcome.",
			},
			[]string{"workflow", "outcome"},
		),
		intakeQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "orchestrator",
				Subsystem: "intake",
				Name:      "queue_depth",
				Help:      "Events waiting in the asynchronous intake queue.",
			},
		),
	}

	m.eventsProcessed = register(reg, m.eventsProcessed)
	m.pipelineDuration = register(reg, m.pipelineDuration)
	m.classifications = register(reg, m.classifications)
	m.escalations = register(reg, m.escalations)
	m.workflowTriggers = register(reg, m.workflowTriggers)
	m.intakeQueueDepth = register(reg, m.intakeQueueDepth)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.registry = g
	} else {
		m.registry = prometheus.DefaultGatherer
	}
	return m
}

// register adds c to reg, reusing an existing identical collector.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent records an event reaching status after d.
func (m *Metrics) ObserveEvent(eventType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.eventsProcessed.WithLabelValues(eventType, status).Inc()
	m.pipelineDuration.WithLabelValues(status).Observe(d.Seconds())
}

// IncClassification counts a verdict. fallback selects the origin label.
func (m *Metrics) IncClassification(intent string, fallback bool) {
	if m == nil {
		return
	}
	origin := "oracle"
	if fallback {
		origin = "fallback"
	}
	m.classifications.WithLabelValues(intent, origin).Inc()
}

// IncEscalation counts an escalation with the given priority.
func (m *Metrics) IncEscalation(priority string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(priority).Inc()
}

// IncWorkflowTrigger counts a workflow trigger attempt.
func (m *Metrics) IncWorkflowTrigger(workflow string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.workflowTriggers.WithLabelValues(workflow, outcome).Inc()
}

// SetQueueDepth reports the current intake queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.intakeQueueDepth.Set(float64(n))
}
