package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridehail_sim", Name: "requests_total", Help: "Ride requests created"})
	MatchesTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridehail_sim", Name: "matches_total", Help: "Requests matched to a driver"})
	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridehail_sim", Name: "rides_completed_total", Help: "Rides reaching COMPLETED"})
	DriversOnline  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ridehail_sim", Name: "drivers_online", Help: "Drivers in any non-OFFLINE status"})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ridehail_sim", Name: "active_sessions", Help: "Ride sessions not yet terminal"})

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridehail_sim", Name: "cancellations_total", Help: "Requests reaching CANCELLED, by reason"},
		[]string{"reason"},
	)

	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ridehail_sim",
		Name:      "match_latency_seconds",
		Help:      "Wall-clock latency of one match attempt",
	})
	RideDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ridehail_sim",
		Name:      "ride_duration_seconds",
		Help:      "Simulated trip duration of completed rides",
		Buckets:   prometheus.ExponentialBuckets(60, 2, 10),
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridehail_sim", Name: "http_requests_total", Help: "HTTP requests served"},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "ridehail_sim", Name: "http_request_duration_seconds", Help: "HTTP request latency"},
		[]string{"method", "route", "status"},
	)

	SinkPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridehail_sim", Name: "sink_publish_errors_total", Help: "Event publications that exhausted retries"},
		[]string{"sink"},
	)
)
