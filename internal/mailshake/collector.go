package mailshake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ignite/mailshake-monitor/internal/domain"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
	"github.com/ignite/mailshake-monitor/internal/progress"
)

// Fallbacks used when campaigns/get omits a field.
const (
	UnknownTitle  = "Unknown Title"
	UnknownSender = "Unknown Sender"
)

// Collector turns raw Mailshake listings into per-campaign stats.
type Collector struct {
	client *Client
}

// NewCollector creates a new collector
func NewCollector(client *Client) *Collector {
	return &Collector{client: client}
}

// Client returns the underlying API client.
func (c *Collector) Client() *Client { return c.client }

// Collect gathers one campaign's stats for the requested scope. Categories
// outside scope are left at zero; merging them with cached values is the
// caller's job. Metadata is always fetched.
func (c *Collector) Collect(ctx context.Context, campaignID int64, scope domain.Scope) (domain.CampaignRecord, error) {
	var stats domain.CampaignStats
	cid := strconv.FormatInt(campaignID, 10)

	if scope.IncludesSendsOpens() {
		progress.Logf(ctx, "Campaign %s: fetching sends", cid)
		sent, err := c.client.FetchAll(ctx, "activity/sent", campaignParams(cid, nil))
		if err != nil {
			return domain.CampaignRecord{}, err
		}
		stats.Sends = len(sent)

		progress.Logf(ctx, "Campaign %s: fetching opens", cid)
		opens, err := c.client.FetchAll(ctx, "activity/opens", campaignParams(cid, nil))
		if err != nil {
			return domain.CampaignRecord{}, err
		}
		stats.UniqueOpens = CountUniqueOpens(opens)

		progress.Logf(ctx, "Campaign %s: fetching replies", cid)
		replies, err := c.client.FetchAll(ctx, "activity/replies", campaignParams(cid, map[string]string{"replyType": "reply"}))
		if err != nil {
			return domain.CampaignRecord{}, err
		}
		stats.Replies = len(replies)
	}

	if scope.IncludesLeads() {
		progress.Logf(ctx, "Campaign %s: fetching leads (closed/lost/open)", cid)
		counts := make(map[string]int, 3)
		for _, status := range []string{LeadStatusClosed, LeadStatusLost, LeadStatusOpen} {
			leads, err := c.client.FetchAll(ctx, "leads/list", campaignParams(cid, map[string]string{"status": status}))
			if err != nil {
				return domain.CampaignRecord{}, err
			}
			counts[status] = len(leads)
		}
		stats.Leads = domain.LeadCounts{
			Won:  counts[LeadStatusClosed],
			Lost: counts[LeadStatusLost],
			Open: counts[LeadStatusOpen],
		}
	}

	info, err := c.client.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.CampaignRecord{}, err
	}

	rec := domain.CampaignRecord{
		ID:     cid,
		Title:  info.Title,
		Sender: info.SenderEmail(),
		Stats:  stats,
	}
	if rec.Title == "" {
		rec.Title = UnknownTitle
	}
	if rec.Sender == "" {
		rec.Sender = UnknownSender
	}
	return rec, nil
}

// Discover returns the IDs of campaigns whose title matches search.
func (c *Collector) Discover(ctx context.Context, search string) ([]int64, error) {
	campaigns, err := c.client.ListCampaigns(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("discovering campaigns: %w", err)
	}

	ids := make([]int64, 0, len(campaigns))
	for _, cs := range campaigns {
		if id := cs.ID.Int64(); id > 0 {
			ids = append(ids, id)
		}
	}
	progress.Logf(ctx, "Found %d campaigns matching %q", len(ids), search)
	return ids, nil
}

// WonLeads fetches closed leads for every campaign. A campaign that fails is
// logged and skipped so one bad ID does not spoil the export.
func (c *Collector) WonLeads(ctx context.Context, campaignIDs []int64) []WonLead {
	var out []WonLead
	for _, id := range campaignIDs {
		cid := strconv.FormatInt(id, 10)
		raw, err := c.client.FetchAll(ctx, "leads/list", campaignParams(cid, map[string]string{"status": LeadStatusClosed}))
		if err != nil {
			logger.Warn("mailshake: fetching won leads failed", "campaign_id", cid, "error", err)
			continue
		}
		for _, r := range raw {
			fields := map[string]any{}
			dec := json.NewDecoder(bytes.NewReader(r))
			dec.UseNumber()
			if err := dec.Decode(&fields); err != nil {
				continue
			}
			out = append(out, WonLead{CampaignID: cid, Fields: fields})
		}
	}
	return out
}

func campaignParams(campaignID string, extra map[string]string) url.Values {
	params := url.Values{}
	params.Set("campaignID", campaignID)
	for k, v := range extra {
		params.Set(k, v)
	}
	return params
}
