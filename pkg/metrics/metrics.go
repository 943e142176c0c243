package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ddnsd"

var Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "reconcile_outcomes_total",
	Help:      "Counter of reconciliation outcomes.",
}, []string{"target", "family", "outcome"})

var ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "provider_requests_total",
	Help:      "Counter of DNS provider calls by result kind.",
}, []string{"provider", "op", "result"})

var Retries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "provider_retries_total",
	Help:      "Counter of provider calls retried after a transient error.",
}, []string{"provider", "stage"})

var CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "reconcile_duration_seconds",
	Help:      "Duration of a reconciliation invocation.",
	Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
}, []string{"target"})

var ConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "consecutive_failures",
	Help:      "Failed invocations in a row per target.",
}, []string{"target"})

var LastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "last_success_timestamp_seconds",
	Help:      "Time of the last invocation without a failed outcome.",
}, []string{"target"})

var SkippedRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "skipped_runs_total",
	Help:      "Counter of scheduled runs skipped because the previous one was still in flight.",
}, []string{"target"})

var Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "notifications_total",
	Help:      "Counter of notification deliveries by sink and result.",
}, []string{"sink", "result"})

var NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "notifications_dropped_total",
	Help:      "Counter of notification events dropped because the queue was full.",
})
