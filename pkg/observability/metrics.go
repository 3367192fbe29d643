// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the fetchbridge adapter.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets defines histogram buckets for request latencies, from 5ms
// to 60s. Streaming responses sit at the upper end.
var LatencyBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchbridge_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetchbridge_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LatencyBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks the number of requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetchbridge_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// RequestOutcomesTotal counts adapter outcomes by final lifecycle state
	// (done, aborted) or by the state in which an error stopped the request.
	RequestOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchbridge_request_outcomes_total",
			Help: "Adapter request outcomes",
		},
		[]string{"state", "result"},
	)

	// AbortedTotal counts requests whose cancellation signal fired before
	// the response was fully written, by abort reason.
	AbortedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchbridge_requests_aborted_total",
			Help: "Aborted requests",
		},
		[]string{"reason"},
	)

	// StreamErrorsTotal counts body streaming failures by operation.
	StreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchbridge_stream_errors_total",
			Help: "Body streaming errors",
		},
		[]string{"op"},
	)

	// ResponseBodyBytesTotal counts response body bytes written to clients.
	ResponseBodyBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchbridge_response_body_bytes_total",
			Help: "Response body bytes written",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchbridge_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)

	// UpstreamRequestsTotal counts requests forwarded by the proxy handler,
	// by upstream status class ("error" for network failures).
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchbridge_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"status"},
	)

	// UpstreamLatency records time to upstream response headers in seconds.
	UpstreamLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetchbridge_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: LatencyBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		RequestOutcomesTotal,
		AbortedTotal,
		StreamErrorsTotal,
		ResponseBodyBytesTotal,
		RateLimitRejectedTotal,
		UpstreamRequestsTotal,
		UpstreamLatency,
	)
}

// StatusClass returns a status class label like "2xx" or "5xx".
func StatusClass(status int) string {
	switch {
	case status >= 100 && status < 600:
		return strconv.Itoa(status/100) + "xx"
	default:
		return "other"
	}
}
