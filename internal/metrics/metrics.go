package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket metrics
var (
	// ConnectedClients tracks the number of live viewer connections.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_connected_clients",
			Help: "Current number of connected dashboard viewers",
		},
	)

	// MessagesSent tracks pushed messages by type (widget_update, refresh).
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_messages_sent_total",
			Help: "Total messages pushed to viewers by message type",
		},
		[]string{"type"},
	)

	// ClientsDropped counts viewers disconnected because delivery failed.
	ClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_clients_dropped_total",
			Help: "Total viewers disconnected due to failed delivery",
		},
	)
)

// Refresh metrics
var (
	// RefreshCycles tracks fetch+render cycles by integration and status.
	RefreshCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_refresh_cycles_total",
			Help: "Total widget refresh cycles by integration and status",
		},
		[]string{"integration", "status"},
	)

	// RefreshDuration tracks fetch+render latency per integration.
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_refresh_duration_seconds",
			Help:    "Widget fetch+render duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"integration"},
	)

	// StreamingMode records the negotiated mode per integration
	// (1 = streaming, 0 = polling).
	StreamingMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashboard_streaming_mode",
			Help: "Negotiated refresh mode per integration (1=streaming, 0=polling)",
		},
		[]string{"integration"},
	)
)
