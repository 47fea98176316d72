// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropwatch_webhook_requests_total",
		Help: "Webhook deliveries by source and result",
	}, []string{"source", "result"})

	ApprovalCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropwatch_approval_callbacks_total",
		Help: "Approval callback requests by action and HTTP status",
	}, []string{"action", "status"})

	ApprovalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropwatch_approval_decisions_total",
		Help: "Terminal approval decisions observed by waiting runs",
	}, []string{"decision"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dropwatch_rate_limited_total",
		Help: "Requests refused by the approval endpoint rate limiter",
	})

	RunOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropwatch_run_outcomes_total",
		Help: "Purchase attempts by mode and terminal outcome",
	}, []string{"mode", "kind"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dropwatch_run_duration_seconds",
		Help:    "Wall time of purchase attempts",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
	})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dropwatch_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "route"})
)

// RegisterPendingApprovals exports fn as the pending approvals gauge.
// Registering a second time is a no-op.
func RegisterPendingApprovals(fn func() int) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "dropwatch_pending_approvals",
		Help: "Approval records waiting for a decision",
	}, func() float64 { return float64(fn()) })

	err := prometheus.Register(gauge)
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
