// Package metrics exposes Prometheus collectors for a hotterms run. Collectors
// live in a package registry that is pushed to a Pushgateway when a run ends.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	registry *prometheus.Registry

	sourceFetchesTotal      *prometheus.CounterVec
	sourceTermsTotal        *prometheus.CounterVec
	sourceFetchDuration     *prometheus.HistogramVec
	destinationOpsTotal     *prometheus.CounterVec
	accountRoutesTotal      *prometheus.CounterVec
	endpointPauseSeconds    prometheus.Histogram
	fallbackPoolSize        prometheus.Gauge
	lastRunTimestampSeconds prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		factory := promauto.With(registry)

		sourceFetchesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotterms_source_fetches_total",
				Help: "Total number of source fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		sourceTermsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotterms_source_terms_total",
				Help: "Total number of terms extracted, labeled by site.",
			},
			[]string{"site"},
		)

		sourceFetchDuration = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hotterms_source_fetch_duration_seconds",
				Help:    "Histogram of source fetch latencies, labeled by source kind.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"kind"},
		)

		destinationOpsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotterms_destination_ops_total",
				Help: "Total number of destination writes and removals, labeled by op and outcome.",
			},
			[]string{"op", "outcome"},
		)

		accountRoutesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotterms_account_routes_total",
				Help: "Total number of routing decisions, labeled by decision.",
			},
			[]string{"decision"},
		)

		endpointPauseSeconds = factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hotterms_endpoint_pause_seconds",
				Help:    "Histogram of pauses between custom endpoint fetches.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
		)

		fallbackPoolSize = factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hotterms_fallback_pool_terms",
				Help: "Number of distinct terms in the most recent fallback pool.",
			},
		)

		lastRunTimestampSeconds = factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hotterms_last_run_timestamp_seconds",
				Help: "Unix time at which the most recent run finished.",
			},
		)
	})
}

// Registry returns the registry holding every hotterms collector.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one source fetch attempt.
func ObserveFetch(rawURL, kind, outcome string, termCount int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	sourceFetchesTotal.WithLabelValues(site, outcome).Inc()
	if termCount > 0 {
		sourceTermsTotal.WithLabelValues(site).Add(float64(termCount))
	}
	sourceFetchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveDestination records a destination write or removal.
func ObserveDestination(op, outcome string) {
	Init()
	destinationOpsTotal.WithLabelValues(op, outcome).Inc()
}

// ObserveRoute records a routing decision.
func ObserveRoute(decision string) {
	Init()
	accountRoutesTotal.WithLabelValues(decision).Inc()
}

// ObserveEndpointPause records a pause between endpoint fetches.
func ObserveEndpointPause(duration time.Duration) {
	Init()
	endpointPauseSeconds.Observe(duration.Seconds())
}

// SetFallbackPoolSize records the size of the fallback pool.
func SetFallbackPoolSize(n int) {
	Init()
	fallbackPoolSize.Set(float64(n))
}

// MarkRunFinished stamps the run completion time.
func MarkRunFinished(at time.Time) {
	Init()
	lastRunTimestampSeconds.Set(float64(at.Unix()))
}

// Push sends the registry to a Prometheus Pushgateway under the given job name.
func Push(ctx context.Context, gatewayURL, job string) error {
	if strings.TrimSpace(gatewayURL) == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		job = "hotterms"
	}
	if err := push.New(gatewayURL, job).Gatherer(Registry()).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
