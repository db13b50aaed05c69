// Package metrics holds the Prometheus instrumentation for handshake
// attempts and transport byte counts (SPEC_FULL.md §4.9). Grounded on
// dantte-lp-gobfd's internal/metrics/collector.go: a Collector struct of
// pre-built metric vectors, constructed once and registered against a
// caller-supplied prometheus.Registerer rather than the global default
// registry (so multiple Authenticators/Connections in one process don't
// collide), with one Record*/Add* method per event.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "mtclient"
)

// Outcome labels for handshake_attempts_total.
const (
	OutcomeOK               = "ok"
	OutcomeSecurityError    = "security_error"
	OutcomeProtocolMismatch = "protocol_mismatch"
	OutcomeRetryRequested   = "retry_requested"
	OutcomeExhausted        = "exhausted"
)

// Direction labels for transport_bytes_total.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Collector holds all mtclient Prometheus metrics.
type Collector struct {
	HandshakeAttempts *prometheus.CounterVec
	HandshakeDuration prometheus.Histogram
	TransportBytes    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it against reg. If reg
// is nil, prometheus.DefaultRegisterer is used — callers embedding
// multiple Connections in one process should pass their own
// *prometheus.Registry instead.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()
	reg.MustRegister(c.HandshakeAttempts, c.HandshakeDuration, c.TransportBytes)
	return c
}

func newMetrics() *Collector {
	return &Collector{
		HandshakeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_attempts_total",
			Help:      "Total DH handshake attempts, labeled by outcome.",
		}, []string{"outcome"}),

		HandshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Wall-clock duration of a single handshake attempt, success or failure.",
			Buckets:   prometheus.DefBuckets,
		}),

		TransportBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_bytes_total",
			Help:      "Total bytes framed on the wire, labeled by transport mode and direction.",
		}, []string{"mode", "direction"}),
	}
}

// RecordHandshake records one completed handshake attempt's outcome and
// duration.
func (c *Collector) RecordHandshake(outcome string, d time.Duration) {
	c.HandshakeAttempts.WithLabelValues(outcome).Inc()
	c.HandshakeDuration.Observe(d.Seconds())
}

// AddTransportBytes accumulates n bytes framed in the given mode and
// direction.
func (c *Collector) AddTransportBytes(mode, direction string, n int) {
	c.TransportBytes.WithLabelValues(mode, direction).Add(float64(n))
}
