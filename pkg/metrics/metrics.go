// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// CycleDuration tracks how long one send/receive cycle takes end to end.
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_cycle_duration_seconds",
			Help:    "Assistant send/receive cycle duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"outcome"},
	)

	// CyclesTotal tracks finished cycles by terminal state.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_cycles_total",
			Help: "Total assistant cycles by outcome",
		},
		[]string{"outcome"},
	)

	// FramesTotal tracks decoded stream frames by event type.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_frames_total",
			Help: "Decoded stream frames by event type",
		},
		[]string{"type"},
	)

	// FramesDroppedTotal tracks frame lines that failed to parse.
	FramesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_frames_dropped_total",
			Help: "Stream frame lines dropped because they were not valid JSON",
		},
	)

	// AgentRequestsTotal tracks calls to the remote agent service.
	AgentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_requests_total",
			Help: "Remote agent requests by operation and result",
		},
		[]string{"op", "result"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// SessionsActive tracks assistant sessions held in memory.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_sessions_active",
			Help: "Number of assistant sessions held by the session manager",
		},
	)

	// TurnRecordsTotal tracks turn records published for the back-office.
	TurnRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turn_records_total",
			Help: "Turn records published by result",
		},
		[]string{"result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordCycle records metrics for a finished assistant cycle.
func RecordCycle(outcome string, duration float64) {
	CycleDuration.WithLabelValues(outcome).Observe(duration)
	CyclesTotal.WithLabelValues(outcome).Inc()
}

// RecordFrame counts a decoded frame.
func RecordFrame(eventType string) {
	FramesTotal.WithLabelValues(eventType).Inc()
}

// RecordDroppedFrame counts an unparseable frame line.
func RecordDroppedFrame() {
	FramesDroppedTotal.Inc()
}

// RecordAgentRequest counts a remote agent call.
func RecordAgentRequest(op, result string) {
	AgentRequestsTotal.WithLabelValues(op, result).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
