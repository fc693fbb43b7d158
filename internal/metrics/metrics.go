// Package metrics exposes Prometheus instrumentation for upstream calls,
// refresh passes and the storage tiers.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream API Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailshake_upstream_requests_total",
			Help: "Total upstream HTTP requests by service, endpoint and final status code",
		},
		[]string{"service", "endpoint", "status_code"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailshake_upstream_request_duration_seconds",
			Help:    "Duration of upstream HTTP requests including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "endpoint"},
	)

	UpstreamRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailshake_upstream_retries_total",
			Help: "Total retries scheduled against upstream APIs",
		},
		[]string{"service", "status_code"},
	)

	// Refresh Metrics
	RefreshPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailshake_refresh_passes_total",
			Help: "Total refresh passes by scope and result",
		},
		[]string{"scope", "result"}, // result: "success", "error"
	)

	RefreshPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailshake_refresh_pass_duration_seconds",
			Help:    "Duration of full refresh passes",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	CampaignsRefreshedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailshake_campaigns_refreshed_total",
			Help: "Total campaigns successfully refreshed",
		},
	)

	CampaignsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailshake_campaigns_skipped_total",
			Help: "Total campaigns skipped during refresh passes",
		},
		[]string{"reason"}, // "recent", "session"
	)

	CampaignFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailshake_campaign_failures_total",
			Help: "Total campaigns whose refresh failed",
		},
	)

	LastSuccessfulRefresh = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailshake_last_successful_refresh_timestamp_seconds",
			Help: "Unix time of the last refresh pass that completed without error",
		},
	)

	// Storage Metrics
	StoreFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailshake_store_fallbacks_total",
			Help: "Total storage operations that fell through a tier",
		},
		[]string{"tier", "operation"},
	)

	StoreBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mailshake_store_breaker_state",
			Help: "Circuit breaker state per storage tier (0=closed, 1=half-open, 2=open)",
		},
		[]string{"tier"},
	)

	// SSE Metrics
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailshake_active_refresh_streams",
			Help: "Current number of connected refresh progress streams",
		},
	)
)

// RecordUpstreamRequest records a completed upstream call.
// statusCode is 0 when no response was received.
func RecordUpstreamRequest(service, endpoint string, statusCode int, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(service, endpoint, strconv.Itoa(statusCode)).Inc()
	UpstreamRequestDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

// RecordUpstreamRetry records a scheduled retry.
func RecordUpstreamRetry(service string, statusCode int) {
	UpstreamRetriesTotal.WithLabelValues(service, strconv.Itoa(statusCode)).Inc()
}

// RecordRefreshPass records a finished refresh pass
func RecordRefreshPass(scope string, duration time.Duration, err error) {
	RefreshPassDuration.Observe(duration.Seconds())
	if err != nil {
		RefreshPassesTotal.WithLabelValues(scope, "error").Inc()
		return
	}
	RefreshPassesTotal.WithLabelValues(scope, "success").Inc()
	LastSuccessfulRefresh.Set(float64(time.Now().Unix()))
}

// RecordCampaignSkipped records a campaign left out of a pass.
func RecordCampaignSkipped(reason string) {
	CampaignsSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordStoreFallback records a tier miss or failure that fell through.
func RecordStoreFallback(tier, operation string) {
	StoreFallbacksTotal.WithLabelValues(tier, operation).Inc()
}

// SetBreakerState publishes a tier's breaker state.
func SetBreakerState(tier string, state int) {
	StoreBreakerState.WithLabelValues(tier).Set(float64(state))
}

// TrackActiveStream tracks connected SSE clients
func TrackActiveStream(inc bool) {
	if inc {
		ActiveStreams.Inc()
	} else {
		ActiveStreams.Dec()
	}
}
