package refresh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/mailshake-monitor/internal/config"
	"github.com/ignite/mailshake-monitor/internal/domain"
	"github.com/ignite/mailshake-monitor/internal/metrics"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
	"github.com/ignite/mailshake-monitor/internal/progress"
)

// maxListedSkips is the largest skip set whose IDs are spelled out in the log.
const maxListedSkips = 10

// Orchestrator runs refresh passes.
type Orchestrator struct {
	collector Collector
	store     Store
	runtime   *config.Runtime
	cfg       config.RefreshConfig
	search    string
	now       func() time.Time
}

// NewOrchestrator wires a collector and store together. search is the
// campaign title marker used for discovery when no IDs are given.
func NewOrchestrator(collector Collector, store Store, rt *config.Runtime, cfg config.RefreshConfig, search string) *Orchestrator {
	return &Orchestrator{
		collector: collector,
		store:     store,
		runtime:   rt,
		cfg:       cfg,
		search:    search,
		now:       time.Now,
	}
}

// Store returns the backing store.
func (o *Orchestrator) Store() Store { return o.store }

func (o *Orchestrator) checkConfig() error {
	if o.runtime.APIKey() == "" {
		return &ConfigError{Msg: "MAILSHAKE_API_KEY not configured"}
	}
	return nil
}

// withSink makes sink the progress destination for everything under ctx.
// A nil sink keeps whatever ctx already carries.
func withSink(ctx context.Context, sink progress.Sink) context.Context {
	if sink == nil {
		return ctx
	}
	return progress.NewContext(ctx, sink)
}

// RefreshAll runs one pass and returns only the campaigns it processed.
// Merging with the cached aggregate is left to the caller (see RefreshAndMerge).
// When a campaign fails the pass stops, and the campaigns completed before it
// are returned alongside the error.
func (o *Orchestrator) RefreshAll(ctx context.Context, sink progress.Sink, overrideIDs []int64, opts Options) (*domain.AggregateStats, error) {
	ctx = withSink(ctx, sink)
	start := o.now()
	out, err := o.refreshAll(ctx, overrideIDs, opts)
	metrics.RecordRefreshPass(opts.Scope.String(), o.now().Sub(start), err)
	if err != nil {
		logger.Error("refresh: pass failed", "scope", opts.Scope.String(), "error", err)
	}
	return out, err
}

func (o *Orchestrator) refreshAll(ctx context.Context, overrideIDs []int64, opts Options) (*domain.AggregateStats, error) {
	if err := o.checkConfig(); err != nil {
		return nil, err
	}

	ids, err := o.resolveIDs(ctx, overrideIDs)
	if err != nil {
		return nil, err
	}

	now := o.now()
	eligible := o.filterRecent(ctx, ids, now)
	work := o.applySession(ctx, eligible, now)

	out := domain.NewAggregate(now)
	if len(work) == 0 {
		o.store.ClearSession(ctx)
		progress.Logf(ctx, "No campaigns need refreshing")
		return out, nil
	}

	for i, id := range work {
		key := domain.CampaignKey(id)
		progress.Logf(ctx, "Processing campaign %s (%d/%d)", key, i+1, len(work))

		rec, err := o.collector.Collect(ctx, id, opts.Scope)
		if err != nil {
			metrics.CampaignFailuresTotal.Inc()
			return out, fmt.Errorf("campaign %s: %w", key, err)
		}

		out.Campaigns[key] = rec
		o.store.SetTimestamp(ctx, key, o.now())
		o.store.MarkCompleted(ctx, key, now)
		metrics.CampaignsRefreshedTotal.Inc()
	}

	o.store.ClearSession(ctx)
	out.LastUpdated = domain.FormatTimestamp(o.now())
	progress.Logf(ctx, "Refresh complete: %d campaigns updated", len(out.Campaigns))
	return out, nil
}

// resolveIDs picks the campaign list: override, else discovery, else the
// configured fallback list. A discovery failure aborts the pass.
func (o *Orchestrator) resolveIDs(ctx context.Context, overrideIDs []int64) ([]int64, error) {
	if len(overrideIDs) > 0 {
		progress.Logf(ctx, "Using %d campaign IDs from request", len(overrideIDs))
		return overrideIDs, nil
	}

	progress.Logf(ctx, "Discovering campaigns with %q in title...", o.search)
	ids, err := o.collector.Discover(ctx, o.search)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}

	fallback := o.runtime.CampaignIDs()
	progress.Logf(ctx, "No campaigns found with %q in title, using %d configured campaign IDs", o.search, len(fallback))
	return fallback, nil
}

// filterRecent drops campaigns refreshed within the skip window.
func (o *Orchestrator) filterRecent(ctx context.Context, ids []int64, now time.Time) []int64 {
	window := o.cfg.SkipWindow()
	stamps := o.store.Timestamps(ctx)

	eligible := make([]int64, 0, len(ids))
	var skipped []string
	for _, id := range ids {
		key := domain.CampaignKey(id)
		if at, ok := stamps[key]; ok && now.Sub(at) < window {
			skipped = append(skipped, key)
			continue
		}
		eligible = append(eligible, id)
	}

	if len(skipped) > 0 {
		msg := fmt.Sprintf("Skipping %d campaigns refreshed within the last %s", len(skipped), formatWindow(window))
		if len(skipped) <= maxListedSkips {
			msg += ": " + strings.Join(skipped, ", ")
		}
		progress.Logf(ctx, "%s", msg)
		for range skipped {
			metrics.RecordCampaignSkipped("recent")
		}
	}
	return eligible
}

// applySession removes campaigns already completed by a live session and
// discards a stale one.
func (o *Orchestrator) applySession(ctx context.Context, eligible []int64, now time.Time) []int64 {
	session := o.store.Session(ctx)
	if session == nil {
		return eligible
	}
	if !session.Active(now, o.cfg.SessionTTL()) {
		o.store.ClearSession(ctx)
		progress.Logf(ctx, "Previous refresh session expired, starting fresh")
		return eligible
	}
	if session.Empty() {
		return eligible
	}

	work := make([]int64, 0, len(eligible))
	for _, id := range eligible {
		if session.Has(domain.CampaignKey(id)) {
			metrics.RecordCampaignSkipped("session")
			continue
		}
		work = append(work, id)
	}
	progress.Logf(ctx, "Resuming refresh session: %d campaigns already completed, %d remaining",
		len(eligible)-len(work), len(work))
	return work
}

// RefreshCampaign collects a single campaign with both scopes, bypassing
// discovery, the skip window and the session. The timestamp is still written.
func (o *Orchestrator) RefreshCampaign(ctx context.Context, sink progress.Sink, campaignID int64) (domain.CampaignRecord, error) {
	ctx = withSink(ctx, sink)
	if err := o.checkConfig(); err != nil {
		return domain.CampaignRecord{}, err
	}
	key := domain.CampaignKey(campaignID)
	progress.Logf(ctx, "Starting refresh for campaign %s", key)

	rec, err := o.collector.Collect(ctx, campaignID, domain.ScopeBoth)
	if err != nil {
		metrics.CampaignFailuresTotal.Inc()
		return domain.CampaignRecord{}, fmt.Errorf("campaign %s: %w", key, err)
	}
	o.store.SetTimestamp(ctx, key, o.now())
	metrics.CampaignsRefreshedTotal.Inc()
	return rec, nil
}

// RefreshAndMerge runs RefreshAll, merges the pass into the cached aggregate
// by scope, persists and returns the merged aggregate. Campaigns finished
// before a failure are still persisted; their timestamps and session marks
// already say they are done.
func (o *Orchestrator) RefreshAndMerge(ctx context.Context, sink progress.Sink, overrideIDs []int64, opts Options) (*domain.AggregateStats, error) {
	ctx = withSink(ctx, sink)
	pass, err := o.RefreshAll(ctx, nil, overrideIDs, opts)
	if err != nil {
		if pass != nil && len(pass.Campaigns) > 0 {
			o.store.Set(ctx, domain.Merge(o.store.Get(ctx), pass, opts.Scope))
			logger.Warn("refresh: kept partial pass", "scope", opts.Scope.String(), "campaigns", len(pass.Campaigns))
		}
		return nil, err
	}
	merged := domain.Merge(o.store.Get(ctx), pass, opts.Scope)
	o.store.Set(ctx, merged)
	return merged, nil
}

// RefreshCampaignAndMerge refreshes one campaign and folds it into the cache.
func (o *Orchestrator) RefreshCampaignAndMerge(ctx context.Context, sink progress.Sink, campaignID int64) (*domain.AggregateStats, error) {
	ctx = withSink(ctx, sink)
	rec, err := o.RefreshCampaign(ctx, nil, campaignID)
	if err != nil {
		return nil, err
	}
	pass := domain.NewAggregate(o.now())
	pass.Campaigns[rec.ID] = rec
	merged := domain.Merge(o.store.Get(ctx), pass, domain.ScopeBoth)
	o.store.Set(ctx, merged)
	progress.Logf(ctx, "Campaign %s refreshed", rec.ID)
	return merged, nil
}

// ResetTimestamps forgets every refresh time and the session so the next
// pass covers every campaign.
func (o *Orchestrator) ResetTimestamps(ctx context.Context) {
	o.store.ClearTimestamps(ctx)
	o.store.ClearSession(ctx)
	logger.Info("refresh: timestamps and session reset")
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
