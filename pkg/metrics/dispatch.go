package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons reported by the dispatch pipeline.
const (
	SkipAlreadySent = "already_sent"
	SkipLeaseHeld   = "lease_held"
	SkipLostRace    = "lost_race"
	SkipInvalid     = "missing_field"
)

// DispatchMetrics counts side-effect attempts by kind and outcome.
type DispatchMetrics struct {
	attempts *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "attempts_total",
		Help:      "Side-effect attempts by event kind, outcome and failure class.",
	}, []string{"kind", "outcome", "failure_class"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "skipped_total",
		Help:      "Events that did not reach the external channel.",
	}, []string{"kind", "reason"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "channel_seconds",
		Help:      "Latency of external channel calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"kind"})
	reg.MustRegister(attempts, skipped, latency)
	return &DispatchMetrics{attempts: attempts, skipped: skipped, latency: latency}
}

// ObserveAttempt records one executor invocation.
func (m *DispatchMetrics) ObserveAttempt(kind, outcome, failureClass string, took time.Duration) {
	if m == nil || m.attempts == nil {
		return
	}
	if failureClass == "" {
		failureClass = "none"
	}
	m.attempts.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome), failureClass).Inc()
	m.latency.WithLabelValues(normalizeLabel(kind)).Observe(took.Seconds())
}

// IncSkipped records an event short-circuited before the channel call.
func (m *DispatchMetrics) IncSkipped(kind, reason string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}
