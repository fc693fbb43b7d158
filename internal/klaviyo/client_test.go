package klaviyo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ignite/mailshake-monitor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKlaviyo struct {
	server       *httptest.Server
	viewedStatus int
}

func newFakeKlaviyo(t *testing.T) *fakeKlaviyo {
	f := &fakeKlaviyo{viewedStatus: http.StatusOK}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeKlaviyo) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Klaviyo-API-Key pk_test" || r.Header.Get("revision") != "2024-07-15" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()
	write := func(v any) { json.NewEncoder(w).Encode(v) }

	switch {
	case r.URL.Path == "/profiles/":
		if strings.Contains(q.Get("filter"), `"known@example.com"`) {
			write(map[string]any{"data": []any{map[string]any{"id": "P1"}}})
			return
		}
		write(map[string]any{"data": []any{}})

	case r.URL.Path == "/metrics/":
		if q.Get("page") == "2" {
			write(map[string]any{"data": []any{
				map[string]any{"id": "M2", "attributes": map[string]any{"name": "Received Email"}},
				map[string]any{"id": "M3", "attributes": map[string]any{"name": "viewed_aiap"}},
			}})
			return
		}
		write(map[string]any{
			"data":  []any{map[string]any{"id": "M1", "attributes": map[string]any{"name": "SUBSCRIPTION_CREATED"}}},
			"links": map[string]any{"next": f.server.URL + "/metrics/?page=2"},
		})

	case r.URL.Path == "/profiles/P1/events/":
		switch q.Get("filter") {
		case "equals(metric_id,M1)":
			write(map[string]any{"data": []any{map[string]any{"id": "e1"}}})
		case "equals(metric_id,M2)":
			if q.Get("page") == "2" {
				write(map[string]any{"data": []any{
					map[string]any{"id": "e3", "attributes": map[string]any{"event_properties": map[string]any{"$flow": "UGW5Jf"}}},
				}})
				return
			}
			write(map[string]any{
				"data":  []any{map[string]any{"id": "e2", "attributes": map[string]any{"event_properties": map[string]any{"$flow": "other"}}}},
				"links": map[string]any{"next": f.server.URL + "/profiles/P1/events/?filter=equals(metric_id,M2)&page=2"},
			})
		case "equals(metric_id,M3)":
			w.WriteHeader(f.viewedStatus)
			write(map[string]any{"data": []any{map[string]any{"id": "e4"}}})
		default:
			write(map[string]any{"data": []any{}})
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(f *fakeKlaviyo, apiKey string) *Client {
	c := NewClient(config.KlaviyoConfig{
		APIKey:         apiKey,
		BaseURL:        f.server.URL + "/",
		Revision:       "2024-07-15",
		TimeoutSeconds: 5,
		FlowID:         "UGW5Jf",
	})
	c.SetHTTPClient(f.server.Client())
	return c
}

func TestCheckEvents(t *testing.T) {
	f := newFakeKlaviyo(t)
	c := newTestClient(f, "pk_test")

	res, err := c.CheckEvents(context.Background(), "known@example.com")
	require.NoError(t, err)
	assert.Equal(t, "known@example.com", res.Email)
	assert.Equal(t, EventFlags{SubscriptionCreated: true, LabTestScheduled: true, ViewedAIAP: true}, res.Events)
}

func TestCheckEvents_SubCheckFailureIsFalse(t *testing.T) {
	f := newFakeKlaviyo(t)
	f.viewedStatus = http.StatusBadRequest
	c := newTestClient(f, "pk_test")

	res, err := c.CheckEvents(context.Background(), "known@example.com")
	require.NoError(t, err)
	assert.True(t, res.Events.SubscriptionCreated)
	assert.True(t, res.Events.LabTestScheduled)
	assert.False(t, res.Events.ViewedAIAP)
}

func TestCheckEvents_ProfileNotFound(t *testing.T) {
	f := newFakeKlaviyo(t)
	c := newTestClient(f, "pk_test")

	_, err := c.CheckEvents(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, ErrProfileNotFound))
}

func TestCheckEvents_NotConfigured(t *testing.T) {
	f := newFakeKlaviyo(t)
	c := newTestClient(f, "")

	_, err := c.CheckEvents(context.Background(), "known@example.com")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMetricID_FollowsPagination(t *testing.T) {
	f := newFakeKlaviyo(t)
	c := newTestClient(f, "pk_test")

	id, err := c.MetricID(context.Background(), "viewed_aiap")
	require.NoError(t, err)
	assert.Equal(t, "M3", id)

	id, err = c.MetricID(context.Background(), "does not exist")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestProfileID_Unauthorized(t *testing.T) {
	f := newFakeKlaviyo(t)
	c := newTestClient(f, "wrong")

	_, err := c.ProfileID(context.Background(), "known@example.com")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestMetricPath(t *testing.T) {
	assert.Equal(t, "profiles/events", metricPath("/api/profiles/P1/events/"))
	assert.Equal(t, "metrics", metricPath("/api/metrics/"))
}
