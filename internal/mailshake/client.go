// Package mailshake talks to the Mailshake REST API: paginated activity and
// lead listings, campaign metadata and campaign discovery.
package mailshake

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/mailshake-monitor/internal/config"
	"github.com/ignite/mailshake-monitor/internal/metrics"
	"github.com/ignite/mailshake-monitor/internal/pkg/httpretry"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
	"github.com/ignite/mailshake-monitor/internal/progress"
)

const (
	serviceName    = "mailshake"
	defaultPerPage = 100
)

// APIError is a non-retryable Mailshake failure: a non-2xx status after
// retries, or a body that is not the expected JSON.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mailshake %s failed (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("mailshake %s failed: %d", e.Endpoint, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// Client is a Mailshake API client. The API key is read from the shared
// runtime config on every request so overrides apply immediately.
type Client struct {
	baseURL    string
	perPage    int
	pageDelay  time.Duration
	runtime    *config.Runtime
	httpClient httpretry.HTTPDoer
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Mailshake API client
func NewClient(cfg config.MailshakeConfig, rt *config.Runtime) *Client {
	if rt == nil {
		rt = config.NewRuntime(cfg)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		perPage:   defaultPerPage,
		pageDelay: cfg.PageDelay(),
		runtime:   rt,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, httpretry.Options{
			Policy:     httpretry.ParsePolicy(cfg.RetryPolicy),
			MaxRetries: cfg.MaxRetries,
			OnRetry:    reportRetry,
		}),
		sleep: sleepContext,
	}
}

// SetHTTPClient replaces the transport (used by tests).
func (c *Client) SetHTTPClient(doer httpretry.HTTPDoer) {
	c.httpClient = doer
}

// HasAPIKey reports whether a credential is configured.
func (c *Client) HasAPIKey() bool {
	return c.runtime.APIKey() != ""
}

// reportRetry forwards each backoff decision to whoever is watching the request.
func reportRetry(req *http.Request, ev httpretry.RetryEvent) {
	metrics.RecordUpstreamRetry(serviceName, ev.StatusCode)
	reason := fmt.Sprintf("status %d", ev.StatusCode)
	if ev.StatusCode == 0 && ev.Err != nil {
		reason = ev.Err.Error()
	}
	progress.Logf(req.Context(), "Upstream %s (%s). Retry %d in %s at %s",
		strings.TrimPrefix(req.URL.Path, "/"), reason, ev.Attempt, ev.Delay, ev.NextAttempt.UTC().Format(time.RFC3339))
}

// doGet issues a GET against endpoint and returns the body of a 2xx response.
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("apiKey", c.runtime.APIKey())
	fullURL := c.baseURL + "/" + endpoint + "?" + q.Encode()

	progress.Logf(ctx, "GET %s", logger.RedactQueryParam(fullURL, "apiKey"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(serviceName, endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("mailshake %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	progress.Logf(ctx, "↳ status %d", resp.StatusCode)
	metrics.RecordUpstreamRequest(serviceName, endpoint, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("mailshake: request failed", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return body, nil
}

// FetchAll follows nextToken until it is empty and returns every result in
// upstream order. A fixed pause separates consecutive pages.
func (c *Client) FetchAll(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, error) {
	var results []json.RawMessage
	nextToken := ""
	for {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("perPage", strconv.Itoa(c.perPage))
		q.Set("nextToken", nextToken)

		body, err := c.doGet(ctx, endpoint, q)
		if err != nil {
			return nil, err
		}

		var page Page
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &APIError{Endpoint: endpoint, StatusCode: http.StatusOK, Err: fmt.Errorf("decoding page: %w", err)}
		}
		results = append(results, page.items()...)

		nextToken = page.NextToken
		if nextToken == "" {
			return results, nil
		}
		if err := c.sleep(ctx, c.pageDelay); err != nil {
			return nil, err
		}
	}
}

// GetCampaign fetches a campaign's metadata.
func (c *Client) GetCampaign(ctx context.Context, campaignID int64) (CampaignInfo, error) {
	params := url.Values{}
	params.Set("campaignID", strconv.FormatInt(campaignID, 10))

	body, err := c.doGet(ctx, "campaigns/get", params)
	if err != nil {
		return CampaignInfo{}, err
	}

	var info CampaignInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return CampaignInfo{}, &APIError{Endpoint: "campaigns/get", StatusCode: http.StatusOK, Err: fmt.Errorf("decoding campaign: %w", err)}
	}
	return info, nil
}

// ListCampaigns pages campaigns/list filtered by a title search.
func (c *Client) ListCampaigns(ctx context.Context, search string) ([]CampaignSummary, error) {
	params := url.Values{}
	params.Set("search", search)

	raw, err := c.FetchAll(ctx, "campaigns/list", params)
	if err != nil {
		return nil, err
	}

	out := make([]CampaignSummary, 0, len(raw))
	for _, r := range raw {
		var cs CampaignSummary
		if err := json.Unmarshal(r, &cs); err != nil {
			continue
		}
		out = append(out, cs)
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
