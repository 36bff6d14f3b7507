package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll metrics
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_polls_total",
			Help: "Total number of installation polls",
		},
		[]string{"installation", "status"}, // status: ok, alert, error
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_poll_duration_seconds",
			Help:    "Time taken to fetch and classify a single installation reading",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"installation"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatcher_cycle_duration_seconds",
			Help:    "Time taken to run a full poll cycle across all installations",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_alerts_total",
			Help: "Total number of readings classified outside the deadband",
		},
		[]string{"installation"},
	)

	// Threshold metrics
	AdjustmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_adjustments_total",
			Help: "Total number of manual threshold adjustments",
		},
		[]string{"installation", "result"}, // result: applied, rejected, failed
	)

	StoreLookupErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_store_lookup_errors_total",
			Help: "Total number of threshold store lookups that failed and degraded to fallback",
		},
		[]string{"kind"}, // kind: threshold, capacity
	)

	FallbackResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_fallback_resolutions_total",
			Help: "Total number of resolutions that fell back to the static threshold",
		},
		[]string{"installation"},
	)

	// Hub metrics
	SubscribersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_subscribers_connected",
			Help: "Current number of connected subscribers",
		},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_broadcasts_total",
			Help: "Total number of events broadcast to subscribers",
		},
		[]string{"type"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_commands_total",
			Help: "Total number of subscriber commands processed",
		},
		[]string{"type", "status"}, // status: ok, rejected, invalid
	)

	// Archive metrics
	ArchivePublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_archive_publish_total",
			Help: "Total number of events published to the archive topic",
		},
		[]string{"status"}, // status: success, failed, dropped
	)

	ArchivePublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatcher_archive_publish_duration_seconds",
			Help:    "Time taken to publish an event batch to the archive topic",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
