package monitoring

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"outcome"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	PostsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_posts_delivered_total",
			Help: "Total number of posts delivered to the destination",
		},
	)

	ParseErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_parse_errors_total",
			Help: "Total number of timeline items skipped as unparseable",
		},
	)

	DuplicatesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_duplicates_skipped_total",
			Help: "Total number of posts skipped by the dedup cache",
		},
	)

	DeliveryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Total number of posts that failed to deliver",
		},
	)

	FloodWaitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_flood_waits_total",
			Help: "Total number of rate-limit waits during delivery",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		RunDuration,
		PostsDeliveredTotal,
		ParseErrorsTotal,
		DuplicatesSkippedTotal,
		DeliveryFailuresTotal,
		FloodWaitsTotal,
	)
}

// Serve exposes the metrics endpoint. It blocks.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
