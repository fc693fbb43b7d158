package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailshake-monitor/internal/storage"
)

type staticTiers []storage.TierStatus

func (s staticTiers) Status() []storage.TierStatus { return s }

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var hs HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hs))
	return hs
}

func TestHealth_AllBackendsUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	tiers := staticTiers{{Name: "postgres", Breaker: "closed"}, {Name: "redis", Breaker: "closed"}, {Name: "memory"}}
	hc := NewHealthChecker(db, rdb, tiers, "1.0.0")

	rec := httptest.NewRecorder()
	hc.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	hs := decodeHealth(t, rec)
	assert.Equal(t, "healthy", hs.Status)
	assert.Equal(t, "1.0.0", hs.Version)
	assert.Equal(t, "up", hs.Checks["postgres"].Status)
	assert.Equal(t, "up", hs.Checks["redis"].Status)
	assert.Len(t, hs.Tiers, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth_NothingConfigured(t *testing.T) {
	hc := NewHealthChecker(nil, nil, staticTiers{{Name: "memory"}}, "dev")

	rec := httptest.NewRecorder()
	hc.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	hs := decodeHealth(t, rec)
	assert.Equal(t, "healthy", hs.Status)
	assert.Equal(t, "not_configured", hs.Checks["postgres"].Status)
	assert.Equal(t, "not_configured", hs.Checks["redis"].Status)

	rec = httptest.NewRecorder()
	hc.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_RedisDownDegrades(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer rdb.Close()
	mr.Close()

	hc := NewHealthChecker(nil, rdb, nil, "dev")

	rec := httptest.NewRecorder()
	hc.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	hs := decodeHealth(t, rec)
	assert.Equal(t, "degraded", hs.Status)
	assert.Equal(t, "down", hs.Checks["redis"].Status)

	rec = httptest.NewRecorder()
	hc.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDetermineOverallStatus_OpenBreaker(t *testing.T) {
	checks := map[string]ComponentCheck{"postgres": {Status: "up"}}
	assert.Equal(t, "degraded", determineOverallStatus(checks, []storage.TierStatus{{Name: "postgres", Breaker: "open"}}))
	assert.Equal(t, "healthy", determineOverallStatus(checks, []storage.TierStatus{{Name: "postgres", Breaker: "closed"}}))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5s", formatUptime(5*time.Second))
	assert.Equal(t, "2m 5s", formatUptime(125*time.Second))
	assert.Equal(t, "1d 1h 0m 0s", formatUptime(25*time.Hour))
}
