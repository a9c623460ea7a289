// Package metrics holds the Prometheus collectors for the ingester.
// Following the explicit dependency injection pattern, the Metrics struct
// is passed to every component that records something; a nil *Metrics
// disables recording so tests and the CLI can skip registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
type Metrics struct {
	// Stream metrics
	updatesReceivedTotal  *prometheus.CounterVec
	keepaliveRepliesTotal prometheus.Counter
	streamConnected       prometheus.Gauge

	// Record pipeline metrics
	recordsPersistedTotal prometheus.Counter
	decodeFailuresTotal   *prometheus.CounterVec
	persistFailuresTotal  prometheus.Counter
	persistDuration       prometheus.Histogram

	// Supervisor metrics
	sessionsTotal  *prometheus.CounterVec
	backoffSeconds prometheus.Histogram
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		updatesReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_updates_received_total",
				Help: "Total number of inbound feed updates by kind",
			},
			[]string{"kind"},
		),
		keepaliveRepliesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "feed_keepalive_replies_total",
				Help: "Total number of pong replies sent to server pings",
			},
		),
		streamConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "feed_stream_connected",
				Help: "Whether a subscription stream is currently open (1) or not (0)",
			},
		),
		recordsPersistedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "records_persisted_total",
				Help: "Total number of transaction records written to the database",
			},
		),
		decodeFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "record_decode_failures_total",
				Help: "Total number of transaction updates dropped because decoding failed",
			},
			[]string{"reason"},
		),
		persistFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "record_persist_failures_total",
				Help: "Total number of records dropped because the database write failed",
			},
		),
		persistDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "record_persist_duration_seconds",
				Help:    "Duration of database writes in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
		sessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_sessions_total",
				Help: "Total number of completed subscription sessions by outcome",
			},
			[]string{"outcome"},
		),
		backoffSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_backoff_seconds",
				Help:    "Backoff wait applied before reconnect attempts",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
		),
	}
}

// RecordUpdateReceived increments the inbound update counter for a kind.
func (m *Metrics) RecordUpdateReceived(kind string) {
	if m == nil {
		return
	}
	m.updatesReceivedTotal.WithLabelValues(kind).Inc()
}

// RecordKeepaliveReply increments the pong reply counter.
func (m *Metrics) RecordKeepaliveReply() {
	if m == nil {
		return
	}
	m.keepaliveRepliesTotal.Inc()
}

// SetStreamConnected flips the stream-connected gauge.
func (m *Metrics) SetStreamConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.streamConnected.Set(1)
	} else {
		m.streamConnected.Set(0)
	}
}

// RecordPersisted increments the persisted-record counter and observes the
// write duration in seconds.
func (m *Metrics) RecordPersisted(durationSeconds float64) {
	if m == nil {
		return
	}
	m.recordsPersistedTotal.Inc()
	m.persistDuration.Observe(durationSeconds)
}

// RecordDecodeFailure increments the decode-failure counter for a reason.
func (m *Metrics) RecordDecodeFailure(reason string) {
	if m == nil {
		return
	}
	m.decodeFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordPersistFailure increments the persist-failure counter.
func (m *Metrics) RecordPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailuresTotal.Inc()
}

// RecordSessionOutcome counts a finished session ("clean" or "transient").
func (m *Metrics) RecordSessionOutcome(outcome string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordBackoff observes the wait applied before a reconnect attempt.
func (m *Metrics) RecordBackoff(seconds float64) {
	if m == nil {
		return
	}
	m.backoffSeconds.Observe(seconds)
}
