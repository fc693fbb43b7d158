package storage

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ignite/mailshake-monitor/internal/domain"
	"github.com/ignite/mailshake-monitor/internal/metrics"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
)

// BreakerConfig tunes the circuit breaker in front of a durable tier.
type BreakerConfig struct {
	FailureThreshold uint32        // consecutive failures before opening
	OpenTimeout      time.Duration // how long to stay open before probing
}

// DefaultBreakerConfig trips after three straight failures and probes every 30s.
var DefaultBreakerConfig = BreakerConfig{FailureThreshold: 3, OpenTimeout: 30 * time.Second}

// BreakerTier puts a circuit breaker in front of a tier so an outage costs a
// fast rejection instead of a connect timeout on every call.
type BreakerTier struct {
	tier Tier
	cb   *gobreaker.CircuitBreaker[any]
}

// WithBreaker wraps tier with a circuit breaker.
func WithBreaker(tier Tier, cfg BreakerConfig) *BreakerTier {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig.OpenTimeout
	}
	settings := gobreaker.Settings{
		Name:        tier.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the tier's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			logger.Warn("storage: circuit breaker state change", "tier", name, "from", from.String(), "to", to.String())
		},
	}
	metrics.SetBreakerState(tier.Name(), int(gobreaker.StateClosed))
	return &BreakerTier{tier: tier, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// State returns the breaker state as "closed", "half-open" or "open".
func (b *BreakerTier) State() string { return b.cb.State().String() }

func (b *BreakerTier) Name() string { return b.tier.Name() }

func guarded[T any](b *BreakerTier, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (any, error) { return fn() })
	out, _ := v.(T)
	return out, err
}

func (b *BreakerTier) exec(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) { return nil, fn() })
	return err
}

func (b *BreakerTier) LoadStats(ctx context.Context) (*domain.AggregateStats, error) {
	return guarded(b, func() (*domain.AggregateStats, error) { return b.tier.LoadStats(ctx) })
}

func (b *BreakerTier) SaveStats(ctx context.Context, stats *domain.AggregateStats) error {
	return b.exec(func() error { return b.tier.SaveStats(ctx, stats) })
}

func (b *BreakerTier) LoadTimestamps(ctx context.Context) (map[string]time.Time, error) {
	return guarded(b, func() (map[string]time.Time, error) { return b.tier.LoadTimestamps(ctx) })
}

func (b *BreakerTier) SaveTimestamp(ctx context.Context, campaignID string, at time.Time) error {
	return b.exec(func() error { return b.tier.SaveTimestamp(ctx, campaignID, at) })
}

func (b *BreakerTier) ClearTimestamps(ctx context.Context) error {
	return b.exec(func() error { return b.tier.ClearTimestamps(ctx) })
}

func (b *BreakerTier) LoadSession(ctx context.Context) (*domain.RefreshSession, error) {
	return guarded(b, func() (*domain.RefreshSession, error) { return b.tier.LoadSession(ctx) })
}

func (b *BreakerTier) SaveSession(ctx context.Context, s *domain.RefreshSession) error {
	return b.exec(func() error { return b.tier.SaveSession(ctx, s) })
}

func (b *BreakerTier) ClearSession(ctx context.Context) error {
	return b.exec(func() error { return b.tier.ClearSession(ctx) })
}
