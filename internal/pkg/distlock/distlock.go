// Package distlock keeps two refresh workers from running a pass at the
// same time. Redis is preferred; PostgreSQL advisory locks are the fallback,
// and with neither configured the lock only excludes within the process.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
)

// ErrNotHeld is returned when releasing or extending a lock we do not own.
var ErrNotHeld = errors.New("distlock: lock not held")

// DistLock is the interface for distributed locking.
// A lock instance is owned by one goroutine at a time.
type DistLock interface {
	// Acquire tries to acquire the lock without waiting. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Extender is implemented by locks that expire unless refreshed.
type Extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// NewLock creates a distributed lock using the best available backend.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	default:
		return &LocalLock{}
	}
}

// LocalLock excludes within a single process.
type LocalLock struct {
	mu   sync.Mutex
	held bool
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return ErrNotHeld
	}
	l.held = false
	return nil
}

// Run calls fn while holding lock. If another holder has it, fn is not
// called and Run reports false. Expiring locks are extended every ttl/3
// until fn returns.
func Run(ctx context.Context, lock DistLock, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	ok, err := lock.Acquire(ctx)
	if err != nil || !ok {
		return false, err
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lock.Release(relCtx); err != nil {
			logger.Warn("distlock: release failed", "error", err)
		}
	}()

	if ext, ok := lock.(Extender); ok && ttl > 0 {
		stop := make(chan struct{})
		defer close(stop)
		go keepAlive(ctx, ext, ttl, stop)
	}

	return true, fn(ctx)
}

func keepAlive(ctx context.Context, ext Extender, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ext.Extend(ctx, ttl); err != nil {
				logger.Warn("distlock: extend failed", "error", err)
			}
		}
	}
}
