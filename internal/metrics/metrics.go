package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustcheck_queries_total",
			Help: "Total number of name queries executed",
		},
		[]string{"provider", "outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustcheck_query_duration_seconds",
			Help:    "Duration of name queries in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	QueryResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustcheck_query_results",
			Help:    "Number of results returned per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"provider"},
	)

	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustcheck_fetch_requests_total",
			Help: "Total number of result page fetches",
		},
		[]string{"host", "status"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustcheck_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)
)

// RecordQuery updates the query metrics for one Execute call.
func RecordQuery(provider, outcome string, took time.Duration, results int) {
	QueriesTotal.WithLabelValues(provider, outcome).Inc()
	QueryDuration.WithLabelValues(provider).Observe(took.Seconds())
	if outcome == OutcomeOK || outcome == OutcomeEmpty {
		QueryResults.WithLabelValues(provider).Observe(float64(results))
	}
}

// RecordFetch counts one page fetch. A zero status means the request
// never got a response.
func RecordFetch(host string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	FetchRequestsTotal.WithLabelValues(host, label).Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
