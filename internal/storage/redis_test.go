package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailshake-monitor/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisTier, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisTier(client), mr
}

func TestRedisTier_Stats(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	stats, err := r.LoadStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, stats)

	in := domain.NewAggregate(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	in.Campaigns["1001"] = domain.CampaignRecord{ID: "1001", Title: "T", Sender: "s", Stats: domain.CampaignStats{Sends: 50}}
	require.NoError(t, r.SaveStats(ctx, in))
	assert.Equal(t, time.Hour, mr.TTL("mailshake:stats"))

	out, err := r.LoadStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	mr.FastForward(61 * time.Minute)
	out, err = r.LoadStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRedisTier_Timestamps(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	ts, err := r.LoadTimestamps(ctx)
	require.NoError(t, err)
	assert.Nil(t, ts)

	require.NoError(t, r.SaveTimestamp(ctx, "1001", at))
	require.NoError(t, r.SaveTimestamp(ctx, "1002", at.Add(-2*time.Hour)))
	assert.Equal(t, 7*24*time.Hour, mr.TTL("mailshake:refresh:1001"))

	ts, err = r.LoadTimestamps(ctx)
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.True(t, at.Equal(ts["1001"]))
	assert.True(t, at.Add(-2*time.Hour).Equal(ts["1002"]))

	require.NoError(t, r.ClearTimestamps(ctx))
	ts, err = r.LoadTimestamps(ctx)
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestRedisTier_Session(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

	require.NoError(t, r.SaveSession(ctx, &domain.RefreshSession{ID: "s1", CompletedCampaigns: []string{"1"}, StartedAt: &started}))
	assert.Equal(t, 24*time.Hour, mr.TTL("mailshake:session"))

	s, err := r.LoadSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, []string{"1"}, s.CompletedCampaigns)
	assert.True(t, started.Equal(*s.StartedAt))

	require.NoError(t, r.ClearSession(ctx))
	s, err = r.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRedisTier_Unreachable(t *testing.T) {
	r, mr := setupTestRedis(t)
	mr.Close()

	_, err := r.LoadStats(context.Background())
	assert.Error(t, err)
}
