package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gapwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPPanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapwatch_http_panics_recovered_total",
			Help: "Handler panics caught by the recovery middleware",
		},
		[]string{"endpoint"},
	)

	HTTPRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapwatch_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// Ingest metrics
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapwatch_messages_received_total",
			Help: "Messages delivered by a source, before rule evaluation",
		},
		[]string{"source"},
	)

	MessagesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapwatch_messages_recorded_total",
			Help: "Messages that advanced a monitor's newest timestamp",
		},
		[]string{"monitor_id"},
	)

	MessageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapwatch_message_errors_total",
			Help: "Messages that could not be applied to a monitor",
		},
		[]string{"source"},
	)

	// Rule metrics
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapwatch_checks_total",
			Help: "Gap checks by outcome",
		},
		[]string{"outcome"}, // outcome: ok, alerted, suppressed, no_data, error
	)

	CheckCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gapwatch_check_cycle_duration_seconds",
			Help:    "Duration of one scheduled check over all monitors",
			Buckets: prometheus.DefBuckets,
		},
	)

	MonitorGapSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gapwatch_monitor_gap_seconds",
			Help: "Seconds since the newest qualifying message, as of the last check",
		},
		[]string{"monitor_id"},
	)

	MonitorsAlerted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapwatch_monitors_alerted",
			Help: "Monitors currently in the alerted state, as of the last cycle",
		},
	)

	// Alert metrics
	AlertsRaised = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapwatch_alerts_raised_total",
			Help: "No-data alerts raised",
		},
	)

	AlertsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapwatch_alerts_resolved_total",
			Help: "No-data alerts closed by fresh data",
		},
	)

	SinkPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapwatch_sink_publish_total",
			Help: "Alert publications per sink",
		},
		[]string{"sink", "status"}, // status: success, failure
	)
)

// Check outcomes
const (
	OutcomeOK         = "ok"
	OutcomeAlerted    = "alerted"
	OutcomeSuppressed = "suppressed"
	OutcomeNoData     = "no_data"
	OutcomeError      = "error"
)
