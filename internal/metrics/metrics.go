// Package metrics provides Prometheus metrics for sheet2xml
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Requests to the conversion service
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheet2xml_api_requests_total",
			Help: "Total number of requests sent to the conversion service",
		},
		[]string{"endpoint", "code"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheet2xml_api_request_duration_seconds",
			Help:    "Time taken by requests to the conversion service",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// Conversion workflow outcomes
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheet2xml_conversions_total",
			Help: "Total number of submitted conversions by result",
		},
		[]string{"result"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheet2xml_upload_bytes",
			Help:    "Size of uploaded spreadsheets",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sheet2xml_sessions_expired_total",
			Help: "Total number of 401 responses that cleared the session token",
		},
	)
)

var (
	// Web front end
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheet2xml_http_requests_total",
			Help: "Total number of requests served by the web front end",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheet2xml_http_request_duration_seconds",
			Help:    "Time taken to serve web front end requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Conversion results
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)
