package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mosaic_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mosaic_ws_sessions_active",
			Help: "Currently live websocket sessions",
		},
	)

	SessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_ws_sessions_total",
			Help: "Total websocket sessions accepted",
		},
	)

	// Messaging metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_messages_sent_total",
			Help: "Total messages persisted",
		},
		[]string{"transport"}, // "ws" or "rest"
	)

	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_messages_marked_read_total",
			Help: "Total messages transitioned to read",
		},
	)

	// Broker metrics
	BrokerPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_broker_publish_total",
			Help: "Total broker publish attempts",
		},
		[]string{"status"}, // "ok" or "error"
	)

	BrokerPayloadsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_broker_payloads_dropped_total",
			Help: "Malformed payloads discarded off broker channels",
		},
	)
)
