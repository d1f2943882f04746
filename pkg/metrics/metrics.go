package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Guard decisions
	GuardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_guard_decisions_total",
			Help: "Guard chain decisions by guard and outcome",
		},
		[]string{"guard", "outcome"}, // outcome: allow, deny, fail_open
	)

	OTPBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_otp_blocks_total",
			Help: "OTP rate-limit blocks issued",
		},
		[]string{"window"}, // minute, hour
	)

	FraudEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_fraud_events_total",
			Help: "Fraud events recorded by type and severity",
		},
		[]string{"event_type", "severity"},
	)

	RestrictedUsersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risk_restricted_users_total",
			Help: "Users transitioned to restricted",
		},
	)

	PerimeterEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_perimeter_events_total",
			Help: "Perimeter security events by type",
		},
		[]string{"event_type"},
	)
)
