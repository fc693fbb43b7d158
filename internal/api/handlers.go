package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/mailshake-monitor/internal/config"
	"github.com/ignite/mailshake-monitor/internal/domain"
	"github.com/ignite/mailshake-monitor/internal/klaviyo"
	"github.com/ignite/mailshake-monitor/internal/mailshake"
	"github.com/ignite/mailshake-monitor/internal/pkg/httputil"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
	"github.com/ignite/mailshake-monitor/internal/progress"
	"github.com/ignite/mailshake-monitor/internal/refresh"
)

// WonLeadSource lists won leads for the CSV export.
type WonLeadSource interface {
	WonLeads(ctx context.Context, campaignIDs []int64) []mailshake.WonLead
}

// EventChecker looks up Klaviyo milestones for a profile.
type EventChecker interface {
	CheckEvents(ctx context.Context, email string) (*klaviyo.EventCheck, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	orchestrator *refresh.Orchestrator
	leads        WonLeadSource
	klaviyo      EventChecker
	runtime      *config.Runtime
	version      string
}

// NewHandlers creates a new Handlers instance
func NewHandlers(orch *refresh.Orchestrator, leads WonLeadSource, events EventChecker, rt *config.Runtime, version string) *Handlers {
	return &Handlers{
		orchestrator: orch,
		leads:        leads,
		klaviyo:      events,
		runtime:      rt,
		version:      version,
	}
}

// GetVersion reports the build version.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	httputil.NoStore(w)
	httputil.OK(w, map[string]string{"version": h.version})
}

// GetStats serves the cached aggregate. When every tier is empty it runs a
// full refresh first. If that fails too, an empty aggregate is returned.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httputil.NoStore(w)

	if cached := h.orchestrator.Store().Get(ctx); !cached.Empty() {
		httputil.OK(w, cached)
		return
	}

	stats, err := h.orchestrator.RefreshAndMerge(context.WithoutCancel(ctx), progress.Discard, nil, refresh.Options{})
	if err != nil {
		logger.Warn("api: on-demand refresh failed", "error", err)
		httputil.OK(w, domain.NewAggregate(time.Time{}))
		return
	}
	httputil.OK(w, stats)
}

// ExportWonLeads downloads the won leads of the ?ids= campaigns, or of the
// configured campaign list, as CSV.
func (h *Handlers) ExportWonLeads(w http.ResponseWriter, r *http.Request) {
	if h.runtime.APIKey() == "" {
		httputil.Error(w, http.StatusInternalServerError, "MAILSHAKE_API_KEY not configured")
		return
	}
	ids := domain.ParseCampaignIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		ids = h.runtime.CampaignIDs()
	}

	leads := h.leads.WonLeads(r.Context(), ids)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="won-leads.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := mailshake.WriteWonLeadsCSV(w, leads); err != nil {
		logger.Warn("api: won leads export interrupted", "error", err)
	}
}
