// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Storage
	KVOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kv_operation_duration_seconds",
			Help:    "Duration of key-value store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	KVOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_operations_total",
			Help: "Total key-value store operations by outcome",
		},
		[]string{"backend", "operation", "result"}, // ok, not_found, conflict, error
	)

	// Matching
	ReactionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactions_recorded_total",
			Help: "Total reactions recorded by canonical value",
		},
		[]string{"reaction"},
	)

	MatchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matches_created_total",
			Help: "Total group matches created",
		},
	)

	SwipeWriteRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swipe_write_retries_total",
			Help: "Compare-and-swap retries caused by concurrent writers",
		},
	)

	QueueAdditions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_additions_total",
			Help: "Group queue add attempts by outcome",
		},
		[]string{"result"}, // added, already_exists
	)

	// Notifications
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications delivered by channel and outcome",
		},
		[]string{"channel", "result"}, // websocket|apns|bus, ok|error
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Currently registered websocket connections",
		},
	)

	// Catalog
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Requests to the external catalog by outcome",
		},
		[]string{"result"}, // ok, error, circuit_open
	)
)

// HTTPRequestDuration is recorded per route pattern by the request logger
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)
