// Package metrics exposes the Prometheus collectors for the notifier.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics
	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_dispatch_total",
		Help: "Total number of completed delivery attempts by sender and result",
	}, []string{"sender", "result"})
	DispatchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_dispatch_failures_total",
		Help: "Total number of delivery attempts that failed",
	})
	DispatchRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_dispatch_rejected_total",
		Help: "Total number of notifications not scheduled, by reason",
	}, []string{"reason"})
	DispatchQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notifier_dispatch_queue_depth",
		Help: "Number of notifications waiting for a worker",
	})
	DispatchInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notifier_dispatch_in_flight",
		Help: "Number of delivery attempts currently running",
	})
	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notifier_dispatch_duration_seconds",
		Help:    "Duration of delivery attempts",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
	}, []string{"sender"})

	// HTTP metrics
	NotifyRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_notify_requests_total",
		Help: "Total number of notify requests by response status",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(DispatchFailures)
	prometheus.MustRegister(DispatchRejected)
	prometheus.MustRegister(DispatchQueueDepth)
	prometheus.MustRegister(DispatchInFlight)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(NotifyRequests)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
