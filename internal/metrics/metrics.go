package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokenExchangesTotal tracks OAuth2 password-grant round-trips by outcome.
	TokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parasut_token_exchanges_total",
			Help: "Total number of Parasut OAuth2 token exchanges (by result).",
		},
		[]string{"result"},
	)

	// APIRequestsTotal tracks outbound resource calls to the Parasut API.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parasut_api_requests_total",
			Help: "Total number of Parasut API requests made (by method and status).",
		},
		[]string{"method", "status"},
	)

	// APIRequestDuration measures the duration of outbound Parasut API calls.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parasut_api_request_duration_seconds",
			Help:    "Duration of Parasut API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"method"},
	)
)

// IncTokenExchange increments the token exchange counter for result.
func IncTokenExchange(result string) {
	TokenExchangesTotal.WithLabelValues(result).Inc()
}

// IncAPIRequest increments the API request counter. A zero status is
// recorded as "transport_error".
func IncAPIRequest(method string, status int) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequestsTotal.WithLabelValues(method, label).Inc()
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}
