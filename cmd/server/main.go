package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/mailshake-monitor/internal/api"
	"github.com/ignite/mailshake-monitor/internal/config"
	"github.com/ignite/mailshake-monitor/internal/klaviyo"
	"github.com/ignite/mailshake-monitor/internal/mailshake"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
	"github.com/ignite/mailshake-monitor/internal/refresh"
	"github.com/ignite/mailshake-monitor/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func main() {
	log.Println("Starting Mailshake dashboard server...")

	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	runtime := config.NewRuntime(cfg.Mailshake)
	if runtime.APIKey() == "" {
		log.Println("[config] MAILSHAKE_API_KEY not set; refreshes will fail until one is provided via /api/config")
	}
	if cfg.Auth.DashboardPassword == "" {
		log.Println("[config] DASHBOARD_PASSWORD not set; the dashboard is open")
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, backends := storage.Open(ctx, cfg.Storage, storage.NewMemoryTier())
	defer backends.Close()

	client := mailshake.NewClient(cfg.Mailshake, runtime)
	collector := mailshake.NewCollector(client)
	orch := refresh.NewOrchestrator(collector, store, runtime, cfg.Refresh, cfg.Mailshake.DiscoverySearch)
	log.Printf("Refresh pipeline ready (retry policy %s, skip window %s)", cfg.Mailshake.RetryPolicy, cfg.Refresh.SkipWindow())

	kv := klaviyo.NewClient(cfg.Klaviyo)
	if !kv.Configured() {
		log.Println("[config] KLAVIYO_API_KEY not set; /api/check-klaviyo-events is disabled")
	}

	handlers := api.NewHandlers(orch, collector, kv, runtime, cfg.Server.Version)
	health := api.NewHealthChecker(backends.DB, backends.Redis, store, cfg.Server.Version)
	server := api.NewServer(cfg.Server, cfg.Auth, handlers, health)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
