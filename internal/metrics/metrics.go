package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchchat_messages_sent_total",
			Help: "Send attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "validation", "storage"
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchchat_deliveries_total",
			Help: "Per-session deliveries by outcome",
		},
		[]string{"outcome"}, // "ok", "closed", "buffer_full"
	)

	StorageLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchchat_storage_append_seconds",
			Help:    "Message store append latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
	)

	// Live connection metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "matchchat_active_sessions",
			Help: "Live connections currently registered",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "matchchat_active_rooms",
			Help: "Conversations with at least one joined session",
		},
	)
)
