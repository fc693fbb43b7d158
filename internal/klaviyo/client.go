// Package klaviyo checks whether a Klaviyo profile has reached the marketing
// milestones the dashboard tracks.
package klaviyo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/mailshake-monitor/internal/config"
	"github.com/ignite/mailshake-monitor/internal/metrics"
	"github.com/ignite/mailshake-monitor/internal/pkg/httpretry"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
)

const serviceName = "klaviyo"

var (
	// ErrNotConfigured is returned when no Klaviyo API key is set.
	ErrNotConfigured = errors.New("KLAVIYO_API_KEY not configured")
	// ErrProfileNotFound is returned when no profile matches the email.
	ErrProfileNotFound = errors.New("profile not found")
)

// StatusError is a non-2xx Klaviyo response.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("klaviyo %s failed: %d", e.Path, e.StatusCode)
}

// Client is a Klaviyo API client
type Client struct {
	baseURL    string
	apiKey     string
	revision   string
	flowID     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new Klaviyo API client
func NewClient(cfg config.KlaviyoConfig) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		revision: cfg.Revision,
		flowID:   cfg.FlowID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, httpretry.Options{
			Policy: httpretry.PolicyBounded,
			OnRetry: func(_ *http.Request, ev httpretry.RetryEvent) {
				metrics.RecordUpstreamRetry(serviceName, ev.StatusCode)
			},
		}),
	}
}

// SetHTTPClient replaces the transport (used by tests).
func (c *Client) SetHTTPClient(doer httpretry.HTTPDoer) {
	c.httpClient = doer
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// getJSON GETs an absolute URL and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Klaviyo-API-Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("revision", c.revision)

	path := req.URL.Path
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(serviceName, metricPath(path), 0, time.Since(start))
		return fmt.Errorf("klaviyo %s: %w", path, err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamRequest(serviceName, metricPath(path), resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Path: path, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding klaviyo %s: %w", path, err)
	}
	return nil
}

// metricPath collapses profile IDs so the metric label stays bounded.
func metricPath(p string) string {
	if strings.Contains(p, "/profiles/") && strings.HasSuffix(strings.TrimRight(p, "/"), "/events") {
		return "profiles/events"
	}
	return strings.Trim(strings.TrimPrefix(p, "/api"), "/")
}

// ProfileID looks up a profile by email. Returns ErrProfileNotFound when none matches.
func (c *Client) ProfileID(ctx context.Context, email string) (string, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("equals(email,%q)", email))

	var doc document
	err := c.getJSON(ctx, c.baseURL+"/profiles/?"+q.Encode(), &doc)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return "", ErrProfileNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fetching profile: %w", err)
	}
	if len(doc.Data) == 0 || doc.Data[0].ID == "" {
		return "", ErrProfileNotFound
	}
	return doc.Data[0].ID, nil
}

// MetricID returns the ID of the metric with the given name, or "" when there is none.
func (c *Client) MetricID(ctx context.Context, name string) (string, error) {
	next := c.baseURL + "/metrics/?fields%5Bmetric%5D=name"
	for next != "" {
		var doc document
		if err := c.getJSON(ctx, next, &doc); err != nil {
			return "", fmt.Errorf("fetching metrics: %w", err)
		}
		for _, m := range doc.Data {
			if m.Attributes.Name == name {
				return m.ID, nil
			}
		}
		next = doc.Links.Next
	}
	return "", nil
}

// eachEvent walks a profile's events for one metric until fn returns true.
func (c *Client) eachEvent(ctx context.Context, profileID, metricID string, extra url.Values, fn func(resource) bool) (bool, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("equals(metric_id,%s)", metricID))
	q.Set("page[size]", "100")
	for k, v := range extra {
		q[k] = v
	}
	next := c.baseURL + "/profiles/" + url.PathEscape(profileID) + "/events/?" + q.Encode()

	for next != "" {
		var doc document
		if err := c.getJSON(ctx, next, &doc); err != nil {
			return false, fmt.Errorf("fetching events: %w", err)
		}
		for _, ev := range doc.Data {
			if fn(ev) {
				return true, nil
			}
		}
		next = doc.Links.Next
	}
	return false, nil
}

// HasEvent reports whether the profile has at least one event for metricID.
func (c *Client) HasEvent(ctx context.Context, profileID, metricID string) (bool, error) {
	return c.eachEvent(ctx, profileID, metricID, nil, func(resource) bool { return true })
}

// ReceivedFlowEmail reports whether the profile received an email sent by flowID.
func (c *Client) ReceivedFlowEmail(ctx context.Context, profileID, flowID string) (bool, error) {
	metricID, err := c.MetricID(ctx, MetricReceivedEmail)
	if err != nil || metricID == "" {
		return false, err
	}
	extra := url.Values{}
	extra.Set("fields[event]", "event_properties,datetime,id")
	return c.eachEvent(ctx, profileID, metricID, extra, func(ev resource) bool {
		flow, _ := ev.Attributes.EventProperties["$flow"].(string)
		return flow == flowID
	})
}

// hasNamedEvent resolves the metric by name and checks the profile for it.
func (c *Client) hasNamedEvent(ctx context.Context, profileID, metric string) (bool, error) {
	metricID, err := c.MetricID(ctx, metric)
	if err != nil || metricID == "" {
		return false, err
	}
	return c.HasEvent(ctx, profileID, metricID)
}

// CheckEvents looks up the profile for email and checks each tracked event.
// A failing sub-check is logged and reported as false. Only a missing key,
// an unknown profile or a failed profile lookup return an error.
func (c *Client) CheckEvents(ctx context.Context, email string) (*EventCheck, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	profileID, err := c.ProfileID(ctx, email)
	if err != nil {
		return nil, err
	}

	result := &EventCheck{Email: email}

	if ok, err := c.hasNamedEvent(ctx, profileID, MetricSubscriptionCreated); err != nil {
		logger.Warn("klaviyo: subscription check failed", "email", email, "error", err)
	} else {
		result.Events.SubscriptionCreated = ok
	}

	if ok, err := c.ReceivedFlowEmail(ctx, profileID, c.flowID); err != nil {
		logger.Warn("klaviyo: flow email check failed", "email", email, "flow_id", c.flowID, "error", err)
	} else {
		result.Events.LabTestScheduled = ok
	}

	if ok, err := c.hasNamedEvent(ctx, profileID, MetricViewedAIAP); err != nil {
		logger.Warn("klaviyo: viewed_aiap check failed", "email", email, "error", err)
	} else {
		result.Events.ViewedAIAP = ok
	}

	return result, nil
}
