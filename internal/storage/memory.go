package storage

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/mailshake-monitor/internal/domain"
)

// MemoryTier keeps everything in process memory with no expiry. Construct it
// once at startup and share it; it is the tier of last resort.
type MemoryTier struct {
	mu         sync.RWMutex
	stats      *domain.AggregateStats
	timestamps map[string]time.Time
	session    *domain.RefreshSession
}

// NewMemoryTier creates an empty in-memory tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{timestamps: make(map[string]time.Time)}
}

func (m *MemoryTier) Name() string { return "memory" }

func (m *MemoryTier) LoadStats(context.Context) (*domain.AggregateStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats.Clone(), nil
}

func (m *MemoryTier) SaveStats(_ context.Context, stats *domain.AggregateStats) error {
	m.mu.Lock()
	m.stats = stats.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) LoadTimestamps(context.Context) (map[string]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.timestamps) == 0 {
		return nil, nil
	}
	out := make(map[string]time.Time, len(m.timestamps))
	for k, v := range m.timestamps {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryTier) SaveTimestamp(_ context.Context, campaignID string, at time.Time) error {
	m.mu.Lock()
	m.timestamps[campaignID] = at
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) ClearTimestamps(context.Context) error {
	m.mu.Lock()
	m.timestamps = make(map[string]time.Time)
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) LoadSession(context.Context) (*domain.RefreshSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone(), nil
}

func (m *MemoryTier) SaveSession(_ context.Context, session *domain.RefreshSession) error {
	m.mu.Lock()
	m.session = session.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) ClearSession(context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}
