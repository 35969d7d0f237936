package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coastle_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coastle_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Evaluation metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coastle_evaluations_total",
			Help: "Total number of reading evaluations",
		},
		[]string{"result"}, // result: alert, no_alert, error
	)

	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coastle_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"kind", "severity"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coastle_notifications_total",
			Help: "Total number of notification attempts per channel",
		},
		[]string{"channel", "status"}, // status: sent, failed
	)

	EscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coastle_escalations_total",
			Help: "Total number of escalated alerts",
		},
	)

	// Threshold metrics
	ThresholdRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coastle_threshold_refresh_total",
			Help: "Total number of threshold optimizer runs",
		},
		[]string{"status"}, // status: success, failed
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coastle_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
