package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailshake-monitor/internal/pkg/httputil"
	"github.com/ignite/mailshake-monitor/internal/storage"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
	Tiers   []storage.TierStatus      `json:"tiers"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// TierReporter lists the cache tiers in read order.
type TierReporter interface {
	Status() []storage.TierStatus
}

// HealthChecker reports on the cache backends. Both are optional: the
// process-local tier keeps the dashboard working without them, so a down
// backend only degrades the service.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	tiers       TierReporter
	version     string
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker. db and redisClient may be nil.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, tiers TierReporter, version string) *HealthChecker {
	return &HealthChecker{
		db:          db,
		redisClient: redisClient,
		tiers:       tiers,
		version:     version,
		startTime:   time.Now(),
	}
}

// HandleHealth returns the status of every component. Always 200; the body
// carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	tiers := hc.tierStatus()

	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks, tiers),
		Version: hc.version,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
		Tiers:   tiers,
	})
}

// HandleLiveness always returns 200 while the process runs.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness returns 503 while any configured backend is unreachable.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	ready := true
	for _, c := range checks {
		if c.Status == "down" {
			ready = false
		}
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

func (hc *HealthChecker) tierStatus() []storage.TierStatus {
	if hc.tiers == nil {
		return nil
	}
	return hc.tiers.Status()
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 2)

	go func() { ch <- result{"postgres", hc.checkDatabase(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()

	checks := make(map[string]ComponentCheck, 2)
	for i := 0; i < 2; i++ {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

// checkDatabase pings PostgreSQL with a 3-second timeout.
func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "not_configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	return pingResult(time.Since(start), time.Second, err)
}

// checkRedis pings Redis with a 2-second timeout.
func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "not_configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redisClient.Ping(pingCtx).Err()
	return pingResult(time.Since(start), 500*time.Millisecond, err)
}

func pingResult(latency, slow time.Duration, err error) ComponentCheck {
	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if latency > slow {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// determineOverallStatus is "degraded" when a configured backend is down or
// slow, or a tier breaker is not closed. Otherwise "healthy".
func determineOverallStatus(checks map[string]ComponentCheck, tiers []storage.TierStatus) string {
	for _, c := range checks {
		if c.Status == "down" || c.Status == "degraded" {
			return "degraded"
		}
	}
	for _, t := range tiers {
		if t.Breaker != "" && t.Breaker != "closed" {
			return "degraded"
		}
	}
	return "healthy"
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
