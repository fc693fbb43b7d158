package mailshake

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/mailshake-monitor/internal/config"
)

const testAPIKey = "test-key"

// fakeMailshake serves canned pages keyed by "<campaignID>:<endpoint>[:<status>]".
// nextToken is the index of the next page.
type fakeMailshake struct {
	mu        sync.Mutex
	pages     map[string][][]any
	campaigns map[string]map[string]any
	failures  map[string]int // endpoint -> status code to return
	requests  []*http.Request
}

func newFakeMailshake() *fakeMailshake {
	return &fakeMailshake{
		pages:     map[string][][]any{},
		campaigns: map[string]map[string]any{},
		failures:  map[string]int{},
	}
}

func pageKey(campaignID, endpoint, status string) string {
	k := campaignID + ":" + endpoint
	if status != "" {
		k += ":" + status
	}
	return k
}

func (f *fakeMailshake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)

	q := r.URL.Query()
	if q.Get("apiKey") != testAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	endpoint := strings.TrimPrefix(r.URL.Path, "/")
	if code, ok := f.failures[endpoint]; ok {
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"error":"forced %d"}`, code)
		return
	}

	campaignID := q.Get("campaignID")
	if endpoint == "campaigns/get" {
		info, ok := f.campaigns[campaignID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(info)
		return
	}

	key := pageKey(campaignID, endpoint, q.Get("status"))
	if endpoint == "campaigns/list" {
		key = pageKey("", endpoint, "")
	}
	pages := f.pages[key]
	idx := 0
	if tok := q.Get("nextToken"); tok != "" {
		idx, _ = strconv.Atoi(tok)
	}
	resp := map[string]any{"results": []any{}, "nextToken": ""}
	if idx < len(pages) {
		resp["results"] = pages[idx]
		if idx+1 < len(pages) {
			resp["nextToken"] = strconv.Itoa(idx + 1)
		}
	}
	json.NewEncoder(w).Encode(resp)
}

func (f *fakeMailshake) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = strings.TrimPrefix(r.URL.Path, "/")
		if s := r.URL.Query().Get("status"); s != "" {
			out[i] += ":" + s
		}
	}
	return out
}

// chunk splits items into pages of size n.
func chunk(items []any, n int) [][]any {
	var pages [][]any
	for len(items) > n {
		pages = append(pages, items[:n])
		items = items[n:]
	}
	return append(pages, items)
}

func repeat(n int, mk func(i int) any) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = mk(i)
	}
	return out
}

// seedCampaign1001 loads 50 sends, 30 opens from 20 people, 5 replies and
// leads closed:3 lost:1 open:2.
func seedCampaign1001(f *fakeMailshake) {
	f.pages[pageKey("1001", "activity/sent", "")] = chunk(repeat(50, func(i int) any {
		return map[string]any{"id": i + 1, "recipient": map[string]any{"emailAddress": fmt.Sprintf("r%d@example.com", i)}}
	}), 20)
	f.pages[pageKey("1001", "activity/opens", "")] = chunk(repeat(30, func(i int) any {
		email := fmt.Sprintf("r%d@example.com", i%20)
		if i >= 20 {
			email = strings.ToUpper(email)
		}
		return map[string]any{"id": 500 + i, "recipient": map[string]any{"emailAddress": email}}
	}), 20)
	f.pages[pageKey("1001", "activity/replies", "")] = [][]any{repeat(5, func(i int) any { return map[string]any{"id": i} })}
	f.pages[pageKey("1001", "leads/list", LeadStatusClosed)] = [][]any{repeat(3, func(i int) any {
		return map[string]any{"id": 900 + i, "status": "closed", "lead": map[string]any{"emailAddress": fmt.Sprintf("won%d@example.com", i)}}
	})}
	f.pages[pageKey("1001", "leads/list", LeadStatusLost)] = [][]any{repeat(1, func(i int) any { return map[string]any{"id": 950} })}
	f.pages[pageKey("1001", "leads/list", LeadStatusOpen)] = [][]any{repeat(2, func(i int) any { return map[string]any{"id": 960 + i} })}
	f.campaigns["1001"] = map[string]any{
		"id":     1001,
		"title":  "[VB] October outreach",
		"sender": map[string]any{"emailAddress": "sales@example.com"},
	}
}

// newTestClient points a client at f without retry backoff and counts page pauses.
func newTestClient(t *testing.T, f *fakeMailshake) (*Client, *int) {
	t.Helper()
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	cfg := config.MailshakeConfig{
		APIKey:          testAPIKey,
		BaseURL:         server.URL,
		TimeoutSeconds:  5,
		PageDelayMillis: 300,
	}
	c := NewClient(cfg, nil)
	c.SetHTTPClient(server.Client())

	pauses := 0
	c.sleep = func(ctx context.Context, d time.Duration) error {
		if d != 300*time.Millisecond {
			t.Errorf("page delay = %s, want 300ms", d)
		}
		pauses++
		return ctx.Err()
	}
	return c, &pauses
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}
