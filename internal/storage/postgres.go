package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/mailshake-monitor/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS dashboard_stats (
	key        TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS campaign_refresh_timestamps (
	campaign_id  TEXT PRIMARY KEY,
	refreshed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS refresh_sessions (
	key                 TEXT PRIMARY KEY,
	session_id          TEXT NOT NULL DEFAULT '',
	completed_campaigns JSONB NOT NULL DEFAULT '[]',
	started_at          TIMESTAMPTZ
);`

// PostgresTier is the durable tier. Tables are created on first use.
type PostgresTier struct {
	db *sql.DB

	mu    sync.Mutex
	ready bool
}

// NewPostgresTier wraps an open database handle.
func NewPostgresTier(db *sql.DB) *PostgresTier {
	return &PostgresTier{db: db}
}

func (p *PostgresTier) Name() string { return "postgres" }

// ensureSchema creates the tables once. A failed attempt is retried on the next call.
func (p *PostgresTier) ensureSchema(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	p.ready = true
	return nil
}

func (p *PostgresTier) LoadStats(ctx context.Context) (*domain.AggregateStats, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM dashboard_stats WHERE key = $1`, statsKey).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	var stats domain.AggregateStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}

func (p *PostgresTier) SaveStats(ctx context.Context, stats *domain.AggregateStats) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO dashboard_stats (key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, statsKey, data)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func (p *PostgresTier) LoadTimestamps(ctx context.Context) (map[string]time.Time, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT campaign_id, refreshed_at FROM campaign_refresh_timestamps`)
	if err != nil {
		return nil, fmt.Errorf("load timestamps: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		out[id] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load timestamps: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (p *PostgresTier) SaveTimestamp(ctx context.Context, campaignID string, at time.Time) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO campaign_refresh_timestamps (campaign_id, refreshed_at)
		VALUES ($1, $2)
		ON CONFLICT (campaign_id) DO UPDATE SET refreshed_at = EXCLUDED.refreshed_at
	`, campaignID, at.UTC())
	if err != nil {
		return fmt.Errorf("save timestamp %s: %w", campaignID, err)
	}
	return nil
}

func (p *PostgresTier) ClearTimestamps(ctx context.Context) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM campaign_refresh_timestamps`); err != nil {
		return fmt.Errorf("clear timestamps: %w", err)
	}
	return nil
}

func (p *PostgresTier) LoadSession(ctx context.Context) (*domain.RefreshSession, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var (
		id        string
		completed []byte
		startedAt sql.NullTime
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT session_id, completed_campaigns, started_at FROM refresh_sessions WHERE key = $1`,
		sessionKey,
	).Scan(&id, &completed, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	s := &domain.RefreshSession{ID: id}
	if err := json.Unmarshal(completed, &s.CompletedCampaigns); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if startedAt.Valid {
		t := startedAt.Time
		s.StartedAt = &t
	}
	return s, nil
}

func (p *PostgresTier) SaveSession(ctx context.Context, s *domain.RefreshSession) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	completed := s.CompletedCampaigns
	if completed == nil {
		completed = []string{}
	}
	data, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	var startedAt sql.NullTime
	if s.StartedAt != nil {
		startedAt = sql.NullTime{Time: s.StartedAt.UTC(), Valid: true}
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (key, session_id, completed_campaigns, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			completed_campaigns = EXCLUDED.completed_campaigns,
			started_at = EXCLUDED.started_at
	`, sessionKey, s.ID, data, startedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *PostgresTier) ClearSession(ctx context.Context) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE key = $1`, sessionKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
