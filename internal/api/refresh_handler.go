package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ignite/mailshake-monitor/internal/domain"
	"github.com/ignite/mailshake-monitor/internal/mailshake"
	"github.com/ignite/mailshake-monitor/internal/metrics"
	"github.com/ignite/mailshake-monitor/internal/pkg/httputil"
	"github.com/ignite/mailshake-monitor/internal/progress"
	"github.com/ignite/mailshake-monitor/internal/refresh"
)

// streamBuffer is how many progress lines may queue up behind a slow client
// before further lines are dropped.
const streamBuffer = 512

// refreshResponse is the one-shot refresh result: the merged aggregate plus
// the progress log of the pass.
type refreshResponse struct {
	*domain.AggregateStats
	Logs []string `json:"logs"`
}

// Refresh runs a full refresh and answers once it is done.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	rec := &progress.Recorder{}
	ids := domain.ParseCampaignIDs(r.URL.Query().Get("ids"))

	stats, err := h.orchestrator.RefreshAndMerge(context.WithoutCancel(r.Context()), rec, ids, refresh.Options{Scope: domain.ScopeBoth})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoStore(w)
	httputil.OK(w, refreshResponse{AggregateStats: stats, Logs: rec.Messages()})
}

// RefreshStream runs a full refresh and streams its progress.
func (h *Handlers) RefreshStream(w http.ResponseWriter, r *http.Request) {
	h.streamScope(w, r, domain.ScopeBoth, "Starting refresh")
}

// RefreshSendsOpens refreshes sends, opens and replies. Cached lead counts
// are kept.
func (h *Handlers) RefreshSendsOpens(w http.ResponseWriter, r *http.Request) {
	h.streamScope(w, r, domain.ScopeSendsOpens, "Starting refresh: sends and opens")
}

// RefreshLeads refreshes lead status counts. Cached sends, opens and
// replies are kept.
func (h *Handlers) RefreshLeads(w http.ResponseWriter, r *http.Request) {
	h.streamScope(w, r, domain.ScopeLeads, "Starting refresh: leads and lead status")
}

func (h *Handlers) streamScope(w http.ResponseWriter, r *http.Request, scope domain.Scope, banner string) {
	ids := domain.ParseCampaignIDs(r.URL.Query().Get("ids"))
	h.stream(w, r, func(ctx context.Context) (*domain.AggregateStats, error) {
		progress.Logf(ctx, "%s", banner)
		return h.orchestrator.RefreshAndMerge(ctx, nil, ids, refresh.Options{Scope: scope})
	})
}

// RefreshCampaign refreshes one campaign, taken from ?campaignId= on GET or
// from a {"campaignId": ...} body on POST.
func (h *Handlers) RefreshCampaign(w http.ResponseWriter, r *http.Request) {
	var id int64
	if r.Method == http.MethodPost {
		var body struct {
			CampaignID mailshake.FlexID `json:"campaignId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			id = body.CampaignID.Int64()
		}
	} else if ids := domain.ParseCampaignIDs(r.URL.Query().Get("campaignId")); len(ids) > 0 {
		id = ids[0]
	}

	if id <= 0 {
		es := httputil.NewEventStream(w)
		es.Data(progress.Event{Time: time.Now(), Message: "error: Missing campaignId"})
		return
	}

	h.stream(w, r, func(ctx context.Context) (*domain.AggregateStats, error) {
		return h.orchestrator.RefreshCampaignAndMerge(ctx, nil, id)
	})
}

// ResetRefreshTimestamps makes the next pass cover every campaign.
func (h *Handlers) ResetRefreshTimestamps(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.ResetTimestamps(r.Context())
	httputil.OK(w, map[string]any{"ok": true, "message": "Refresh timestamps cleared"})
}

type streamResult struct {
	stats *domain.AggregateStats
	err   error
}

// stream runs fn in the background and relays its progress as SSE. The
// work is detached from the request: a client that goes away stops
// receiving events, but the refresh still completes and persists.
//
// Frame order: progress lines, then either "error: <msg>" or an
// "event: final" frame carrying the aggregate followed by "done".
func (h *Handlers) stream(w http.ResponseWriter, r *http.Request, fn func(context.Context) (*domain.AggregateStats, error)) {
	metrics.TrackActiveStream(true)
	defer metrics.TrackActiveStream(false)

	es := httputil.NewEventStream(w)
	events := progress.NewStream(streamBuffer)
	ctx := progress.NewContext(context.WithoutCancel(r.Context()), events)

	done := make(chan streamResult, 1)
	go func() {
		defer events.Close()
		stats, err := fn(ctx)
		done <- streamResult{stats: stats, err: err}
	}()

	if !relay(r.Context(), es, events.Events()) {
		return
	}

	res := <-done
	if res.err != nil {
		es.Data(progress.Event{Time: time.Now(), Message: "error: " + res.err.Error()})
		return
	}
	if res.stats != nil {
		es.Event("final", res.stats)
	}
	es.Data(progress.Event{Time: time.Now(), Message: "done"})
}

// relay copies events to the client until the producer closes the channel.
// It reports false if the client disconnected first.
func relay(ctx context.Context, es *httputil.EventStream, events <-chan progress.Event) bool {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return true
			}
			if err := es.Data(ev); err != nil {
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
}
