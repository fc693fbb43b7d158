package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailshake-monitor/internal/config"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
)

// Backends holds the connections opened by Open so the caller can close them.
type Backends struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Close releases every open connection.
func (b *Backends) Close() {
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Redis != nil {
		b.Redis.Close()
	}
}

// Open builds the tier chain from config. Postgres comes first when
// DATABASE_URL is set, Redis next when REDIS_URL is set, memory always last.
// A backend that fails its startup ping is still added; its breaker takes it
// out of the read path until it recovers.
func Open(ctx context.Context, cfg config.StorageConfig, memory *MemoryTier) (*Tiered, *Backends) {
	backends := &Backends{}
	var durable []Tier

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Warn("storage: postgres disabled", "error", err)
		} else {
			db.SetMaxOpenConns(5)
			db.SetMaxIdleConns(2)
			db.SetConnMaxLifetime(5 * time.Minute)
			if err := ping(ctx, db.PingContext); err != nil {
				logger.Warn("storage: postgres ping failed", "error", err)
			}
			backends.DB = db
			durable = append(durable, WithBreaker(NewPostgresTier(db), DefaultBreakerConfig))
		}
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			// Bare host:port
			opts = &redis.Options{Addr: cfg.RedisURL}
		}
		client := redis.NewClient(opts)
		if err := ping(ctx, func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
			logger.Warn("storage: redis ping failed", "error", err)
		}
		backends.Redis = client
		durable = append(durable, WithBreaker(NewRedisTier(client), DefaultBreakerConfig))
	}

	names := make([]string, 0, len(durable)+1)
	for _, t := range durable {
		names = append(names, t.Name())
	}
	logger.Info("storage: tier chain ready", "tiers", append(names, "memory"))

	return NewTiered(memory, durable...), backends
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return fn(ctx)
}
