package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailshake-monitor/internal/domain"
)

// Redis keys and TTLs.
const (
	redisStatsKey        = "mailshake:stats"
	redisSessionKey      = "mailshake:session"
	redisTimestampPrefix = "mailshake:refresh:"

	StatsTTL     = time.Hour
	TimestampTTL = 7 * 24 * time.Hour
	SessionTTL   = 24 * time.Hour
)

// RedisTier is the volatile remote tier. Every key carries a TTL.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier wraps a connected client.
func NewRedisTier(client *redis.Client) *RedisTier {
	return &RedisTier{client: client}
}

func (r *RedisTier) Name() string { return "redis" }

func (r *RedisTier) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisTier) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *RedisTier) LoadStats(ctx context.Context) (*domain.AggregateStats, error) {
	var stats domain.AggregateStats
	ok, err := r.getJSON(ctx, redisStatsKey, &stats)
	if !ok || err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *RedisTier) SaveStats(ctx context.Context, stats *domain.AggregateStats) error {
	return r.setJSON(ctx, redisStatsKey, stats, StatsTTL)
}

// scanTimestampKeys returns every per-campaign timestamp key.
func (r *RedisTier) scanTimestampKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, redisTimestampPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan timestamps: %w", err)
	}
	return keys, nil
}

func (r *RedisTier) LoadTimestamps(ctx context.Context) (map[string]time.Time, error) {
	keys, err := r.scanTimestampKeys(ctx)
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget timestamps: %w", err)
	}

	out := make(map[string]time.Time, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		at, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			continue
		}
		out[strings.TrimPrefix(keys[i], redisTimestampPrefix)] = at
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (r *RedisTier) SaveTimestamp(ctx context.Context, campaignID string, at time.Time) error {
	key := redisTimestampPrefix + campaignID
	if err := r.client.Set(ctx, key, at.UTC().Format(time.RFC3339Nano), TimestampTTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *RedisTier) ClearTimestamps(ctx context.Context) error {
	keys, err := r.scanTimestampKeys(ctx)
	if err != nil || len(keys) == 0 {
		return err
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear timestamps: %w", err)
	}
	return nil
}

func (r *RedisTier) LoadSession(ctx context.Context) (*domain.RefreshSession, error) {
	var s domain.RefreshSession
	ok, err := r.getJSON(ctx, redisSessionKey, &s)
	if !ok || err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisTier) SaveSession(ctx context.Context, s *domain.RefreshSession) error {
	return r.setJSON(ctx, redisSessionKey, s, SessionTTL)
}

func (r *RedisTier) ClearSession(ctx context.Context) error {
	if err := r.client.Del(ctx, redisSessionKey).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
