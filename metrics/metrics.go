// Package metrics holds the Prometheus collectors of the tool.
//
// HTTP serving:
//   - bpc_http_requests_total: counter by method, route and status
//   - bpc_http_request_duration_seconds: histogram by method and route
//   - bpc_http_requests_in_flight: gauge
//
// Pipeline:
//   - bpc_synapse_requests_total: outbound Synapse calls by operation and outcome
//   - bpc_choice_segments_skipped_total: malformed choices segments by table
//   - bpc_unknown_drug_labels_total: regimen labels missing from the mapping, by cohort
//   - bpc_cohort_refresh_total: cohort runs by cohort and outcome
//
// Everything is registered with the default registry at init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpc_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bpc_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bpc_http_requests_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bpc_rate_limiter_buckets",
			Help: "Client buckets currently tracked by the rate limiter",
		},
	)

	SynapseRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpc_synapse_requests_total",
			Help: "Requests sent to the Synapse REST API",
		},
		[]string{"operation", "outcome"},
	)

	ChoiceSegmentsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpc_choice_segments_skipped_total",
			Help: "Malformed choices segments skipped while building drug mappings",
		},
		[]string{"table"},
	)

	UnknownDrugLabels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpc_unknown_drug_labels_total",
			Help: "Regimen drug labels with no NCIT code in the mapping",
		},
		[]string{"cohort"},
	)

	CohortRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpc_cohort_refresh_total",
			Help: "Cohort pipeline runs",
		},
		[]string{"cohort", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestTotals,
		HTTPRequestDuration,
		HTTPRequestInFlight,
		RateLimiterBucketsTotal,
		SynapseRequestsTotal,
		ChoiceSegmentsSkipped,
		UnknownDrugLabels,
		CohortRefreshTotal,
	)
}
