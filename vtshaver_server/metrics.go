package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes, used as the "result" label.
const (
	resultOK             = "ok"
	resultParseForm      = "parse_form_error"
	resultParseRequest   = "parse_request_error"
	resultInvalidTile    = "invalid_tile"
	resultProxyError     = "proxy_error"
	resultUpstreamStatus = "upstream_status"
	resultCopyError      = "copy_error"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtshaver_requests_total",
			Help: "Tile requests by format and result",
		},
		[]string{"format", "result"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vtshaver_upstream_duration_seconds",
			Help:    "Time spent waiting for the origin server",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vtshaver_request_duration_seconds",
			Help:    "Total time to proxy and shave a tile",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	shavedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtshaver_shaved_bytes_total",
			Help: "Bytes read from the origin and written to clients for shaved tiles",
		},
		[]string{"direction"},
	)
)

func countRequest(format, result string) {
	requestsTotal.WithLabelValues(format, result).Inc()
}

func updateTimers(format string, total, upstream time.Duration) {
	requestDuration.WithLabelValues(format).Observe(total.Seconds())
	upstreamDuration.WithLabelValues(format).Observe(upstream.Seconds())
}

func countBytes(in, out int64) {
	shavedBytes.WithLabelValues("in").Add(float64(in))
	shavedBytes.WithLabelValues("out").Add(float64(out))
}
