package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Client metrics for monitoring stream health and reconciliation behavior
var (
	// Stream metrics
	StreamActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fraudlens_stream_active",
			Help: "Whether a live investigation stream is open (1=open, 0=closed)",
		},
	)

	StreamConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudlens_stream_connects_total",
			Help: "Total number of stream connection attempts",
		},
		[]string{"transport", "status"}, // status: success/failure
	)

	StreamDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudlens_stream_disconnects_total",
			Help: "Total number of stream disconnects",
		},
		[]string{"reason"}, // reason: closed/transport_error
	)

	// Event metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudlens_events_received_total",
			Help: "Total number of named events received on the stream",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudlens_events_dropped_total",
			Help: "Total number of events dropped at the boundary",
		},
		[]string{"reason"}, // reason: malformed/unrecognized/stale_channel
	)

	// Investigation metrics
	InvestigationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudlens_investigations_total",
			Help: "Total number of investigation runs by terminal status",
		},
		[]string{"status"}, // status: completed/error
	)

	InvestigationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fraudlens_investigation_duration_seconds",
			Help:    "Live investigation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
	)

	// Snapshot metrics
	SnapshotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudlens_snapshot_loads_total",
			Help: "Total number of snapshot resume attempts",
		},
		[]string{"result"}, // result: found/not_found/error
	)
)
