package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/mailshake-monitor/internal/config"
	"github.com/ignite/mailshake-monitor/internal/domain"
	"github.com/ignite/mailshake-monitor/internal/mailshake"
	"github.com/ignite/mailshake-monitor/internal/pkg/distlock"
	"github.com/ignite/mailshake-monitor/internal/pkg/httpretry"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
	"github.com/ignite/mailshake-monitor/internal/progress"
	"github.com/ignite/mailshake-monitor/internal/refresh"
	"github.com/ignite/mailshake-monitor/internal/storage"
)

// lockTTL bounds how long a crashed worker can block the others.
const lockTTL = 10 * time.Minute

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

// logSink forwards refresh progress to the structured log.
var logSink = progress.SinkFunc(func(e progress.Event) {
	logger.Info(e.Message, "component", "refresh")
})

func main() {
	log.Println("Starting Mailshake refresh worker...")

	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	// Nobody is waiting on the worker, so it rides out rate limiting
	// instead of giving up.
	cfg.Mailshake.RetryPolicy = httpretry.PolicyUnbounded.String()

	runtime := config.NewRuntime(cfg.Mailshake)
	if runtime.APIKey() == "" {
		log.Fatalf("MAILSHAKE_API_KEY is required for the worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, backends := storage.Open(ctx, cfg.Storage, storage.NewMemoryTier())
	defer backends.Close()

	collector := mailshake.NewCollector(mailshake.NewClient(cfg.Mailshake, runtime))
	orch := refresh.NewOrchestrator(collector, store, runtime, cfg.Refresh, cfg.Mailshake.DiscoverySearch)
	lock := distlock.NewLock(backends.Redis, backends.DB, "refresh-worker", lockTTL)

	interval := cfg.Refresh.WorkerInterval()
	log.Printf("Worker running (every %s)", interval)

	go func() {
		runPass(ctx, orch, lock)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runPass(ctx, orch, lock)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	log.Println("Worker stopped")
}

func runPass(ctx context.Context, orch *refresh.Orchestrator, lock distlock.DistLock) {
	start := time.Now()
	ran, err := distlock.Run(ctx, lock, lockTTL, func(ctx context.Context) error {
		stats, err := orch.RefreshAndMerge(ctx, logSink, nil, refresh.Options{Scope: domain.ScopeBoth})
		if err != nil {
			return err
		}
		logger.Info("worker: pass complete", "campaigns", len(stats.Campaigns), "duration", time.Since(start).String())
		return nil
	})
	switch {
	case err != nil:
		logger.Error("worker: pass failed", "error", err)
	case !ran:
		logger.Info("worker: another worker holds the refresh lock, skipping")
	}
}
