package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MovementsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movements_applied_total",
		Help: "Total number of stock movements applied",
	}, []string{"direction"})

	MovementsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movements_failed_total",
		Help: "Total number of rejected stock movements",
	}, []string{"reason"})

	MovementApplyRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movement_apply_retries_total",
		Help: "Total number of ledger retries after a lost update race",
	})

	MovementApplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "movement_apply_latency_seconds",
		Help:    "Latency of ledger apply operations",
		Buckets: prometheus.DefBuckets,
	})

	SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Total number of alert sweep runs",
	}, []string{"outcome"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of alert sweep runs",
		Buckets: prometheus.DefBuckets,
	})

	AlertsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_created_total",
		Help: "Total number of alerts materialized by sweeps",
	}, []string{"condition"})

	AlertsNotifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerts_notified_total",
		Help: "Total number of alerts marked notified after delivery",
	})

	AlertsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerts_resolved_total",
		Help: "Total number of alerts resolved",
	})

	AlertsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerts_purged_total",
		Help: "Total number of resolved alerts deleted by retention cleanup",
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of notification delivery attempts",
	}, []string{"outcome"})

	NotificationSendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_send_latency_seconds",
		Help:    "Latency of notification gateway sends",
		Buckets: prometheus.DefBuckets,
	})

	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "job_runs_total",
		Help: "Total number of scheduled job runs",
	}, []string{"job", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
