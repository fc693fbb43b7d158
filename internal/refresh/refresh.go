// Package refresh drives incremental refresh passes over Mailshake campaigns:
// it picks the campaigns that are due, resumes interrupted passes, collects
// stats one campaign at a time and folds the result into the cached aggregate.
package refresh

import (
	"context"
	"time"

	"github.com/ignite/mailshake-monitor/internal/domain"
)

// Store is the persistence the orchestrator needs. Implementations swallow
// their own failures; the pipeline never sees a storage error.
type Store interface {
	Get(ctx context.Context) *domain.AggregateStats
	Set(ctx context.Context, stats *domain.AggregateStats)

	Timestamps(ctx context.Context) map[string]time.Time
	SetTimestamp(ctx context.Context, campaignID string, at time.Time)
	ClearTimestamps(ctx context.Context)

	Session(ctx context.Context) *domain.RefreshSession
	// MarkCompleted adds campaignID to the session, starting one at now if needed.
	MarkCompleted(ctx context.Context, campaignID string, now time.Time)
	ClearSession(ctx context.Context)
}

// Collector fetches stats for one campaign and discovers campaigns by title.
type Collector interface {
	Collect(ctx context.Context, campaignID int64, scope domain.Scope) (domain.CampaignRecord, error)
	Discover(ctx context.Context, search string) ([]int64, error)
}

// ConfigError reports missing configuration. It is raised before any network call.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Msg }

// Options tunes a refresh pass.
type Options struct {
	Scope domain.Scope
}
