// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rinkrelay_sessions_active",
			Help: "Number of sessions currently open (not completed or aborted)",
		},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rinkrelay_session_transitions_total",
			Help: "Total session status transitions",
		},
		[]string{"status"},
	)

	SessionWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rinkrelay_session_warnings_total",
			Help: "Total operator-facing session warnings",
		},
		[]string{"warning"},
	)

	// Camera metrics
	CamerasByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rinkrelay_cameras",
			Help: "Connected cameras by connection state",
		},
		[]string{"state"},
	)

	CameraDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rinkrelay_camera_disconnects_total",
			Help: "Total cameras dropped after the heartbeat grace period",
		},
	)

	HeartbeatMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rinkrelay_heartbeat_misses_total",
			Help: "Total missed heartbeat intervals across all cameras",
		},
	)

	// Sync metrics
	SyncRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rinkrelay_sync_requests_total",
			Help: "Clock sync requests by validation outcome",
		},
		[]string{"outcome"}, // "validated", "rejected", "degraded"
	)

	ClockOffsetMs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rinkrelay_clock_offset_ms",
			Help:    "Absolute per-camera clock offset estimates in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Quality metrics
	QualityScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rinkrelay_quality_score",
			Help: "Latest overall quality score per camera",
		},
		[]string{"session_id", "camera_id"},
	)

	QualityTiers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rinkrelay_quality_tier_total",
			Help: "Quality reports produced, by tier",
		},
		[]string{"tier"},
	)

	ChunksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rinkrelay_chunks_rejected_total",
			Help: "Chunk submissions rejected before assessment",
		},
		[]string{"reason"}, // "stale_sequence", "invalid_metadata", "camera_unknown"
	)

	// Switching metrics
	SwitchingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rinkrelay_switching_decisions_total",
			Help: "Switching decisions by reason code",
		},
		[]string{"reason"},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rinkrelay_tick_duration_seconds",
			Help:    "Wall time of one full decision tick (assess, weigh, decide, log, publish)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5},
		},
	)

	// Event stream metrics
	NATSPublishes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rinkrelay_nats_publishes_total",
			Help: "Total events published to NATS",
		},
	)

	NATSPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rinkrelay_nats_publish_failures_total",
			Help: "Total failed NATS publish attempts (after circuit breaker)",
		},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rinkrelay_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rinkrelay_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rinkrelay_http_active_requests",
			Help: "HTTP requests currently in flight",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rinkrelay_websocket_connections",
			Help: "Connected operator dashboard clients",
		},
	)

	WebSocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rinkrelay_websocket_dropped_total",
			Help: "Dashboard messages dropped due to slow clients",
		},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, endpoint, strconv.Itoa(status)).
		Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight HTTP requests.
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

// RecordNATSPublish records one publish attempt outcome.
func RecordNATSPublish(err error) {
	if err != nil {
		NATSPublishFailures.Inc()
		return
	}
	NATSPublishes.Inc()
}

// RecordDecision records one switching decision.
func RecordDecision(reason string) {
	SwitchingDecisions.WithLabelValues(reason).Inc()
}

// RecordQualityReport records one produced quality report.
func RecordQualityReport(sessionID, cameraID, tier string, overall float64) {
	QualityScore.WithLabelValues(sessionID, cameraID).Set(overall)
	QualityTiers.WithLabelValues(tier).Inc()
}

// ForgetCamera drops per-camera gauge series when a session ends so the
// scrape surface does not grow without bound.
func ForgetCamera(sessionID, cameraID string) {
	QualityScore.DeleteLabelValues(sessionID, cameraID)
}

// RecordSessionTransition records a session status change.
func RecordSessionTransition(status string) {
	SessionTransitions.WithLabelValues(status).Inc()
}

// RecordWarning records an operator-facing warning.
func RecordWarning(warning string) {
	SessionWarnings.WithLabelValues(warning).Inc()
}
