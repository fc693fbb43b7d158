package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordUpstreamRequest(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("mailshake", "activity/sent", "200"))
	RecordUpstreamRequest("mailshake", "activity/sent", 200, 250*time.Millisecond)
	after := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("mailshake", "activity/sent", "200"))
	assert.Equal(t, before+1, after)
}

func TestRecordUpstreamRetry(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRetriesTotal.WithLabelValues("klaviyo", "429"))
	RecordUpstreamRetry("klaviyo", 429)
	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamRetriesTotal.WithLabelValues("klaviyo", "429")))
}

func TestRecordRefreshPass(t *testing.T) {
	okBefore := testutil.ToFloat64(RefreshPassesTotal.WithLabelValues("both", "success"))
	errBefore := testutil.ToFloat64(RefreshPassesTotal.WithLabelValues("both", "error"))

	RecordRefreshPass("both", time.Second, nil)
	RecordRefreshPass("both", time.Second, errors.New("discovery failed"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(RefreshPassesTotal.WithLabelValues("both", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(RefreshPassesTotal.WithLabelValues("both", "error")))
	assert.Greater(t, testutil.ToFloat64(LastSuccessfulRefresh), float64(0))
}

func TestStoreMetrics(t *testing.T) {
	before := testutil.ToFloat64(StoreFallbacksTotal.WithLabelValues("redis", "load_stats"))
	RecordStoreFallback("redis", "load_stats")
	assert.Equal(t, before+1, testutil.ToFloat64(StoreFallbacksTotal.WithLabelValues("redis", "load_stats")))

	SetBreakerState("postgres", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(StoreBreakerState.WithLabelValues("postgres")))
}

func TestTrackActiveStream(t *testing.T) {
	before := testutil.ToFloat64(ActiveStreams)
	TrackActiveStream(true)
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveStreams))
	TrackActiveStream(false)
	assert.Equal(t, before, testutil.ToFloat64(ActiveStreams))
}
