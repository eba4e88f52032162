// Package metrics provides Prometheus metrics for the gallery connectors:
// provider request counters and latencies, page fetch progress, record
// emission, token refreshes, and relay throughput.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequests counts outbound provider API requests by outcome.
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_provider_requests_total",
			Help: "Total outbound provider API requests",
		},
		[]string{"connector", "method", "status"},
	)

	// RequestLatency tracks provider request latency distributions.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_provider_request_seconds",
			Help:    "Provider API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connector", "method"},
	)

	// PagesFetched counts pages retrieved by the paged fetch engine.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_pages_fetched_total",
			Help: "Total pages retrieved by the paged fetcher",
		},
		[]string{"connector"},
	)

	// FetchesInFlight gauges currently outstanding page fetches.
	FetchesInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gallery_fetches_in_flight",
			Help: "Currently outstanding page fetches",
		},
		[]string{"connector"},
	)

	// IncompleteFetches counts paged runs cut short by the deadline.
	IncompleteFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_incomplete_fetches_total",
			Help: "Paged retrievals that returned partial results on deadline",
		},
		[]string{"connector"},
	)

	// RecordsEmitted counts normalized records written to the output stream.
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_records_emitted_total",
			Help: "Normalized records written to the output stream",
		},
		[]string{"connector", "source"},
	)

	// TokenRefreshes counts OAuth token refresh attempts by outcome.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_token_refreshes_total",
			Help: "OAuth access token refresh attempts",
		},
		[]string{"provider", "outcome"},
	)

	// RelayBytes counts bytes forwarded by streaming relays.
	RelayBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_relay_bytes_total",
			Help: "Bytes forwarded verbatim by streaming relays",
		},
		[]string{"connector"},
	)
)

// Timer measures an operation duration and records it on stop.
type Timer struct {
	start     time.Time
	connector string
	method    string
}

// NewRequestTimer starts a latency timer for one provider request.
func NewRequestTimer(connector, method string) *Timer {
	return &Timer{
		start:     time.Now(),
		connector: connector,
		method:    method,
	}
}

// Stop records the elapsed duration and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	RequestLatency.WithLabelValues(t.connector, t.method).Observe(elapsed.Seconds())
	return elapsed
}
