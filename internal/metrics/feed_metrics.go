package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Feed and command metrics. Like the HTTP metrics they are nil until the
// first recording with business metrics enabled.
var (
	sourceFetchDuration    *prometheus.HistogramVec
	sourceFetchFailures    *prometheus.CounterVec
	sourceItemsFetched     *prometheus.CounterVec
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	feedItems              prometheus.Histogram
	feedDegradedTotal      prometheus.Counter
	cacheLookups           *prometheus.CounterVec
	staleResultsDiscarded  prometheus.Counter
	commandsTotal          *prometheus.CounterVec
	commandsInFlightDenied prometheus.Counter

	feedMetricsOnce sync.Once
)

func initializeFeedMetrics() {
	feedMetricsOnce.Do(func() {
		sourceFetchDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_source_fetch_duration_seconds",
				Help:    "Time spent fetching one source of the request feed",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "status"},
		)

		sourceFetchFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_source_fetch_failures_total",
				Help: "Source fetches that failed and degraded the feed",
			},
			[]string{"kind"},
		)

		sourceItemsFetched = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_source_items_total",
				Help: "Requests returned by a source before client-side filtering",
			},
			[]string{"kind"},
		)

		backendRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_backend_http_requests_total",
				Help: "Total number of HTTP requests to the request backends",
			},
			[]string{"backend", "operation", "status_code"},
		)

		backendRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_backend_http_request_duration_seconds",
				Help:    "Duration of HTTP requests to the request backends",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		)

		feedItems = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_feed_items",
			Help:    "Number of items in a merged feed",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		})

		feedDegradedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_feed_degraded_total",
			Help: "Feeds built with at least one failed source",
		})

		cacheLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_feed_cache_lookups_total",
				Help: "Feed cache lookups by result",
			},
			[]string{"result"},
		)

		staleResultsDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_stale_results_discarded_total",
			Help: "Query results dropped because a newer query was issued",
		})

		commandsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_commands_total",
				Help: "Decision and cancel commands by outcome",
			},
			[]string{"kind", "action", "outcome"},
		)

		commandsInFlightDenied = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_commands_in_flight_denied_total",
			Help: "Commands refused because another one was running for the same request",
		})

		GetInstance().registry.MustRegister(
			sourceFetchDuration,
			sourceFetchFailures,
			sourceItemsFetched,
			backendRequestsTotal,
			backendRequestDuration,
			feedItems,
			feedDegradedTotal,
			cacheLookups,
			staleResultsDiscarded,
			commandsTotal,
			commandsInFlightDenied,
		)
	})
}

// RecordSourceFetch records one adapter fetch.
func RecordSourceFetch(kind string, items int, duration time.Duration, err error) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeFeedMetrics()

	status := "success"
	if err != nil {
		status = "error"
		sourceFetchFailures.WithLabelValues(kind).Inc()
	} else {
		sourceItemsFetched.WithLabelValues(kind).Add(float64(items))
	}
	sourceFetchDuration.WithLabelValues(kind, status).Observe(duration.Seconds())
}

// RecordBackendRequest records a call to one of the request backends.
// statusCode is 0 when no response was received.
func RecordBackendRequest(backend, operation string, statusCode int, duration time.Duration) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeFeedMetrics()

	backendRequestsTotal.WithLabelValues(backend, operation, strconv.Itoa(statusCode)).Inc()
	backendRequestDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordFeed records the size of a merged feed.
func RecordFeed(items int, degraded bool) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeFeedMetrics()

	feedItems.Observe(float64(items))
	if degraded {
		feedDegradedTotal.Inc()
	}
}

// RecordCacheLookup records a feed cache hit or miss.
func RecordCacheLookup(hit bool) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeFeedMetrics()

	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordStaleDiscard records a query result dropped by a view.
func RecordStaleDiscard() {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeFeedMetrics()

	staleResultsDiscarded.Inc()
}

// RecordCommand records the outcome of a dispatched command.
func RecordCommand(kind, action, outcome string) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeFeedMetrics()

	commandsTotal.WithLabelValues(kind, action, outcome).Inc()
}

// RecordInFlightDenied records a command refused by the in-flight guard.
func RecordInFlightDenied() {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeFeedMetrics()

	commandsInFlightDenied.Inc()
}
