package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailshake-monitor/internal/domain"
	"github.com/ignite/mailshake-monitor/internal/metrics"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
)

// Tiered reads from the first tier that has a value and writes to the first
// durable tier that accepts it, plus memory. Durable tier errors are logged
// and never returned, so a cache outage cannot fail the dashboard.
type Tiered struct {
	durable []Tier
	memory  *MemoryTier

	// clearPending names durable tiers whose session row survived a failed
	// ClearSession. Their session is not trusted until the clear goes through.
	mu           sync.Mutex
	clearPending map[string]bool
}

// NewTiered chains the durable tiers, in priority order, in front of memory.
func NewTiered(memory *MemoryTier, durable ...Tier) *Tiered {
	if memory == nil {
		memory = NewMemoryTier()
	}
	return &Tiered{durable: durable, memory: memory, clearPending: make(map[string]bool)}
}

// TierStatus describes one tier for the health endpoint.
type TierStatus struct {
	Name    string `json:"name"`
	Breaker string `json:"breaker,omitempty"`
}

// Status lists the tiers in read order.
func (t *Tiered) Status() []TierStatus {
	out := make([]TierStatus, 0, len(t.durable)+1)
	for _, tier := range t.durable {
		st := TierStatus{Name: tier.Name()}
		if b, ok := tier.(*BreakerTier); ok {
			st.Breaker = b.State()
		}
		out = append(out, st)
	}
	return append(out, TierStatus{Name: t.memory.Name()})
}

func (t *Tiered) fallThrough(tier Tier, op string, err error) {
	metrics.RecordStoreFallback(tier.Name(), op)
	if err != nil {
		logger.Warn("storage: tier failed, falling back", "tier", tier.Name(), "op", op, "error", err)
	}
}

// write tries durable tiers until one succeeds, then always updates memory.
func (t *Tiered) write(op string, fn func(Tier) error) {
	for _, tier := range t.durable {
		err := fn(tier)
		if err == nil {
			break
		}
		t.fallThrough(tier, op, err)
	}
	fn(t.memory)
}

// clear runs fn on every tier.
func (t *Tiered) clear(op string, fn func(Tier) error) {
	for _, tier := range t.durable {
		if err := fn(tier); err != nil {
			t.fallThrough(tier, op, err)
		}
	}
	fn(t.memory)
}

// Get returns the cached aggregate or nil.
func (t *Tiered) Get(ctx context.Context) *domain.AggregateStats {
	for _, tier := range t.durable {
		stats, err := tier.LoadStats(ctx)
		if err == nil && stats != nil {
			return stats
		}
		t.fallThrough(tier, "load_stats", err)
	}
	stats, _ := t.memory.LoadStats(ctx)
	return stats
}

// Set stores the aggregate.
func (t *Tiered) Set(ctx context.Context, stats *domain.AggregateStats) {
	t.write("save_stats", func(tier Tier) error { return tier.SaveStats(ctx, stats) })
}

// Timestamps returns last-refresh times by campaign ID, never nil.
func (t *Tiered) Timestamps(ctx context.Context) map[string]time.Time {
	for _, tier := range t.durable {
		ts, err := tier.LoadTimestamps(ctx)
		if err == nil && len(ts) > 0 {
			return ts
		}
		t.fallThrough(tier, "load_timestamps", err)
	}
	ts, _ := t.memory.LoadTimestamps(ctx)
	if ts == nil {
		ts = map[string]time.Time{}
	}
	return ts
}

// SetTimestamp records a successful refresh of campaignID at at.
func (t *Tiered) SetTimestamp(ctx context.Context, campaignID string, at time.Time) {
	t.write("save_timestamp", func(tier Tier) error { return tier.SaveTimestamp(ctx, campaignID, at) })
}

// ClearTimestamps forgets every refresh time in every tier.
func (t *Tiered) ClearTimestamps(ctx context.Context) {
	t.clear("clear_timestamps", func(tier Tier) error { return tier.ClearTimestamps(ctx) })
}

func (t *Tiered) setClearPending(tier Tier, pending bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pending {
		t.clearPending[tier.Name()] = true
		return
	}
	delete(t.clearPending, tier.Name())
}

func (t *Tiered) isClearPending(tier Tier) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clearPending[tier.Name()]
}

// retryClear finishes an earlier failed session clear on tier. It reports
// whether the tier's session can be read again.
func (t *Tiered) retryClear(ctx context.Context, tier Tier) bool {
	if !t.isClearPending(tier) {
		return true
	}
	if err := tier.ClearSession(ctx); err != nil {
		t.fallThrough(tier, "clear_session", err)
		return false
	}
	t.setClearPending(tier, false)
	logger.Info("storage: pending session clear applied", "tier", tier.Name())
	return true
}

// Session returns the in-flight refresh session or nil.
func (t *Tiered) Session(ctx context.Context) *domain.RefreshSession {
	for _, tier := range t.durable {
		if !t.retryClear(ctx, tier) {
			continue
		}
		s, err := tier.LoadSession(ctx)
		if err == nil && s != nil {
			return s
		}
		t.fallThrough(tier, "load_session", err)
	}
	s, _ := t.memory.LoadSession(ctx)
	return s
}

// MarkCompleted adds campaignID to the session, starting a new session at
// now when there is none.
func (t *Tiered) MarkCompleted(ctx context.Context, campaignID string, now time.Time) {
	s := t.Session(ctx)
	if s == nil {
		started := now.UTC()
		s = &domain.RefreshSession{ID: uuid.NewString(), StartedAt: &started}
	}
	s.Add(campaignID)
	t.write("save_session", func(tier Tier) error {
		if err := tier.SaveSession(ctx, s); err != nil {
			return err
		}
		if tier != Tier(t.memory) {
			t.setClearPending(tier, false)
		}
		return nil
	})
}

// ClearSession drops the session in every tier. A durable tier that cannot
// be cleared now is retried before its session is read again.
func (t *Tiered) ClearSession(ctx context.Context) {
	t.clear("clear_session", func(tier Tier) error {
		err := tier.ClearSession(ctx)
		if tier != Tier(t.memory) {
			t.setClearPending(tier, err != nil)
		}
		return err
	})
}
