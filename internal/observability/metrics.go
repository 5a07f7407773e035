package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_created_total", Help: "Total rides created"})

	RideTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "ride_transitions_total", Help: "Ride lifecycle transitions by outcome"},
		[]string{"transition", "outcome"},
	)

	DispatchNotifiedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "dispatch_notified_total", Help: "Drivers notified of new rides"})
	DispatchSkippedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "dispatch_skipped_total", Help: "Candidate drivers skipped during fan-out"})
	DispatchLatency       = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ride_dispatch", Name: "dispatch_latency_seconds", Help: "Dispatch fan-out latency seconds"})

	ConnectionsActive  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "connections_active", Help: "Live realtime connection bindings"})
	EventsSentTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "events_sent_total", Help: "Realtime events delivered"})
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "events_dropped_total", Help: "Realtime events dropped (no binding or write failure)"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
