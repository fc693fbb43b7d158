// Package storage persists the dashboard aggregate, per-campaign refresh
// timestamps and the in-flight refresh session across a chain of tiers:
// Postgres, then Redis, then process memory.
package storage

import (
	"context"
	"time"

	"github.com/ignite/mailshake-monitor/internal/domain"
)

// Tier is one storage backend. Load methods return a nil value with a nil
// error on a miss.
type Tier interface {
	Name() string

	LoadStats(ctx context.Context) (*domain.AggregateStats, error)
	SaveStats(ctx context.Context, stats *domain.AggregateStats) error

	LoadTimestamps(ctx context.Context) (map[string]time.Time, error)
	SaveTimestamp(ctx context.Context, campaignID string, at time.Time) error
	ClearTimestamps(ctx context.Context) error

	LoadSession(ctx context.Context) (*domain.RefreshSession, error)
	SaveSession(ctx context.Context, session *domain.RefreshSession) error
	ClearSession(ctx context.Context) error
}

// Fixed logical keys shared by the durable tiers.
const (
	statsKey   = "stats"
	sessionKey = "current"
)
