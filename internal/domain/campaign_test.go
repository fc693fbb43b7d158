package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string, sends, opens, replies, won, lost, open int) CampaignRecord {
	return CampaignRecord{
		ID:     id,
		Title:  "Campaign " + id,
		Sender: "sender@example.com",
		Stats: CampaignStats{
			Sends:       sends,
			UniqueOpens: opens,
			Replies:     replies,
			Leads:       LeadCounts{Won: won, Lost: lost, Open: open},
		},
	}
}

func TestMergePreservesUntouchedCampaigns(t *testing.T) {
	prior := &AggregateStats{
		Campaigns: map[string]CampaignRecord{
			"1": record("1", 10, 5, 1, 1, 0, 0),
			"2": record("2", 20, 8, 2, 0, 1, 0),
			"3": record("3", 30, 9, 3, 0, 0, 1),
		},
		LastUpdated: "2026-01-01T00:00:00Z",
	}
	pass := &AggregateStats{
		Campaigns:   map[string]CampaignRecord{"2": record("2", 25, 11, 4, 2, 1, 0)},
		LastUpdated: "2026-01-02T00:00:00Z",
	}

	merged := Merge(prior, pass, ScopeBoth)

	require.Len(t, merged.Campaigns, 3)
	assert.Equal(t, prior.Campaigns["1"], merged.Campaigns["1"])
	assert.Equal(t, prior.Campaigns["3"], merged.Campaigns["3"])
	assert.Equal(t, pass.Campaigns["2"], merged.Campaigns["2"])
	assert.Equal(t, "2026-01-02T00:00:00Z", merged.LastUpdated)
}

func TestMergeSendsOpensKeepsCachedLeads(t *testing.T) {
	prior := &AggregateStats{Campaigns: map[string]CampaignRecord{
		"1": record("1", 10, 5, 1, 7, 3, 2),
	}}
	pass := &AggregateStats{Campaigns: map[string]CampaignRecord{
		"1": record("1", 12, 6, 2, 0, 0, 0),
		"9": record("9", 4, 1, 0, 0, 0, 0),
	}}

	merged := Merge(prior, pass, ScopeSendsOpens)

	assert.Equal(t, CampaignStats{Sends: 12, UniqueOpens: 6, Replies: 2, Leads: LeadCounts{Won: 7, Lost: 3, Open: 2}},
		merged.Campaigns["1"].Stats)
	// A campaign new to the cache gets zeroed leads.
	assert.Equal(t, LeadCounts{}, merged.Campaigns["9"].Stats.Leads)
}

func TestMergeLeadsKeepsCachedSendsOpens(t *testing.T) {
	prior := &AggregateStats{Campaigns: map[string]CampaignRecord{
		"1": record("1", 10, 5, 1, 0, 0, 0),
	}}
	pass := &AggregateStats{Campaigns: map[string]CampaignRecord{
		"1": record("1", 0, 0, 0, 4, 2, 1),
	}}

	merged := Merge(prior, pass, ScopeLeads)

	assert.Equal(t, CampaignStats{Sends: 10, UniqueOpens: 5, Replies: 1, Leads: LeadCounts{Won: 4, Lost: 2, Open: 1}},
		merged.Campaigns["1"].Stats)
}

func TestMergeNilInputs(t *testing.T) {
	pass := &AggregateStats{Campaigns: map[string]CampaignRecord{"1": record("1", 1, 1, 1, 1, 1, 1)}, LastUpdated: "x"}

	merged := Merge(nil, pass, ScopeBoth)
	assert.Len(t, merged.Campaigns, 1)

	prior := &AggregateStats{Campaigns: map[string]CampaignRecord{"1": record("1", 1, 1, 1, 1, 1, 1)}, LastUpdated: "y"}
	merged = Merge(prior, nil, ScopeBoth)
	assert.Len(t, merged.Campaigns, 1)
	assert.Equal(t, "y", merged.LastUpdated)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	prior := &AggregateStats{Campaigns: map[string]CampaignRecord{"1": record("1", 1, 0, 0, 0, 0, 0)}}
	pass := &AggregateStats{Campaigns: map[string]CampaignRecord{"2": record("2", 2, 0, 0, 0, 0, 0)}}

	Merge(prior, pass, ScopeBoth)

	assert.Len(t, prior.Campaigns, 1)
	assert.Len(t, pass.Campaigns, 1)
}

func TestAggregateJSONShape(t *testing.T) {
	a := &AggregateStats{
		Campaigns:   map[string]CampaignRecord{"1001": record("1001", 50, 20, 5, 3, 1, 2)},
		LastUpdated: "2026-10-15T08:00:00Z",
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	campaigns := raw["campaigns"].(map[string]any)
	stats := campaigns["1001"].(map[string]any)["stats"].(map[string]any)
	assert.EqualValues(t, 20, stats["uniqueOpens"])
	assert.EqualValues(t, 3, stats["leads"].(map[string]any)["won"])
	assert.Equal(t, "2026-10-15T08:00:00Z", raw["lastUpdated"])
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 10, 15, 8, 30, 15, 987654321, time.FixedZone("X", 2*3600))
	assert.Equal(t, "2026-10-15T06:30:15Z", FormatTimestamp(ts))
}

func TestParseCampaignIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []int64
	}{
		{"", []int64{}},
		{"1472607 1472605", []int64{1472607, 1472605}},
		{"1,2, 3", []int64{1, 2, 3}},
		{"abc 0 -4 12", []int64{12}},
		{"  7\n8\t9 ", []int64{7, 8, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCampaignIDs(tt.in))
		})
	}
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("leads")
	require.NoError(t, err)
	assert.Equal(t, ScopeLeads, s)
	assert.False(t, s.IncludesSendsOpens())

	s, err = ParseScope("")
	require.NoError(t, err)
	assert.True(t, s.IncludesLeads() && s.IncludesSendsOpens())

	_, err = ParseScope("clicks")
	assert.Error(t, err)
}

func TestRefreshSession(t *testing.T) {
	start := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	s := &RefreshSession{ID: "abc", StartedAt: &start}
	s.Add("1")
	s.Add("1")
	s.Add("2")

	assert.Equal(t, []string{"1", "2"}, s.CompletedCampaigns)
	assert.True(t, s.Has("2"))
	assert.False(t, s.Has("3"))
	assert.True(t, s.Active(start.Add(23*time.Hour), 24*time.Hour))
	assert.False(t, s.Active(start.Add(25*time.Hour), 24*time.Hour))

	var nilSession *RefreshSession
	assert.True(t, nilSession.Empty())
	assert.False(t, nilSession.Active(start, time.Hour))

	c := s.Clone()
	c.Add("3")
	assert.False(t, s.Has("3"))
}
