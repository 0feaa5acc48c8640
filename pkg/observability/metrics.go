// Package observability provides Prometheus metrics, health checks, and the
// HTTP server exposing both for the bookchat client.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Stream metrics
	streamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookchat_stream_events_total",
			Help: "Total number of events received on the chat stream",
		},
		[]string{"kind"},
	)

	streamDedupDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookchat_stream_dedup_dropped_total",
			Help: "Events dropped because their message-state key was already applied",
		},
	)

	streamParseErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookchat_stream_parse_errors_total",
			Help: "Malformed stream frames dropped",
		},
	)

	streamReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookchat_stream_reconnects_total",
			Help: "Reconnect attempts scheduled after a stream drop",
		},
	)

	streamConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookchat_stream_connected",
			Help: "Whether the chat stream is currently connected (1) or not (0)",
		},
	)

	// API request metrics
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookchat_api_requests_total",
			Help: "Total number of backend API requests",
		},
		[]string{"op", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookchat_api_request_duration_seconds",
			Help:    "Backend API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Transcript metrics
	transcriptEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookchat_transcript_entries",
			Help: "Number of entries in the current transcript",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers all bookchat metrics with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			streamEventsTotal,
			streamDedupDroppedTotal,
			streamParseErrorsTotal,
			streamReconnectsTotal,
			streamConnected,
			apiRequestsTotal,
			apiRequestDuration,
			transcriptEntries,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordStreamEvent records one received stream event by kind
// ("connected", "message").
func RecordStreamEvent(kind string) {
	streamEventsTotal.WithLabelValues(kind).Inc()
}

// RecordDedupDrop records an event dropped by the processed-key set.
func RecordDedupDrop() {
	streamDedupDroppedTotal.Inc()
}

// RecordParseError records a malformed frame dropped by the client.
func RecordParseError() {
	streamParseErrorsTotal.Inc()
}

// RecordReconnect records a scheduled reconnect attempt.
func RecordReconnect() {
	streamReconnectsTotal.Inc()
}

// SetStreamConnected sets the stream connection gauge.
func SetStreamConnected(connected bool) {
	if connected {
		streamConnected.Set(1)
	} else {
		streamConnected.Set(0)
	}
}

// RecordAPIRequest records one backend API request.
func RecordAPIRequest(op, status string, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(op, status).Inc()
	apiRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetTranscriptEntries sets the transcript size gauge.
func SetTranscriptEntries(count int) {
	transcriptEntries.Set(float64(count))
}
