package domain

import "time"

// LeadCounts holds the number of leads per status for one campaign.
// "closed" leads upstream are reported as Won.
type LeadCounts struct {
	Won  int `json:"won"`
	Lost int `json:"lost"`
	Open int `json:"open"`
}

// CampaignStats is the engagement summary for one campaign.
// UniqueOpens is a cardinality of distinct recipients, not an event count.
type CampaignStats struct {
	Sends       int        `json:"sends"`
	UniqueOpens int        `json:"uniqueOpens"`
	Replies     int        `json:"replies"`
	Leads       LeadCounts `json:"leads"`
}

// CampaignRecord is one entry of the aggregate, keyed by its ID.
type CampaignRecord struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Sender string        `json:"sender"`
	Stats  CampaignStats `json:"stats"`
}

// AggregateStats is the cached blob served to the dashboard.
type AggregateStats struct {
	Campaigns   map[string]CampaignRecord `json:"campaigns"`
	LastUpdated string                    `json:"lastUpdated"`
}

// NewAggregate returns an aggregate with an initialized campaign map.
func NewAggregate(lastUpdated time.Time) *AggregateStats {
	a := &AggregateStats{Campaigns: make(map[string]CampaignRecord)}
	if !lastUpdated.IsZero() {
		a.LastUpdated = FormatTimestamp(lastUpdated)
	}
	return a
}

// Empty reports whether the aggregate carries no campaigns.
func (a *AggregateStats) Empty() bool {
	return a == nil || len(a.Campaigns) == 0
}

// Clone returns a copy whose campaign map can be mutated independently.
func (a *AggregateStats) Clone() *AggregateStats {
	if a == nil {
		return nil
	}
	c := &AggregateStats{
		Campaigns:   make(map[string]CampaignRecord, len(a.Campaigns)),
		LastUpdated: a.LastUpdated,
	}
	for id, rec := range a.Campaigns {
		c.Campaigns[id] = rec
	}
	return c
}

// Merge folds the output of one refresh pass into the prior aggregate.
//
// Records in pass replace the prior record for the same key, except that the
// category the pass did not fetch (per scope) is carried over from prior.
// Every prior key absent from pass is kept as-is, so a pass over a subset of
// campaigns never drops the rest. LastUpdated is taken from pass.
func Merge(prior, pass *AggregateStats, scope Scope) *AggregateStats {
	out := &AggregateStats{Campaigns: make(map[string]CampaignRecord)}
	if pass != nil {
		out.LastUpdated = pass.LastUpdated
		for id, rec := range pass.Campaigns {
			var old CampaignRecord
			if prior != nil {
				old = prior.Campaigns[id]
			}
			out.Campaigns[id] = mergeRecord(old, rec, scope)
		}
	}
	if prior != nil {
		if out.LastUpdated == "" {
			out.LastUpdated = prior.LastUpdated
		}
		for id, rec := range prior.Campaigns {
			if _, ok := out.Campaigns[id]; !ok {
				out.Campaigns[id] = rec
			}
		}
	}
	return out
}

func mergeRecord(old, fresh CampaignRecord, scope Scope) CampaignRecord {
	merged := fresh
	if merged.ID == "" {
		merged.ID = old.ID
	}
	if !scope.IncludesSendsOpens() {
		merged.Stats.Sends = old.Stats.Sends
		merged.Stats.UniqueOpens = old.Stats.UniqueOpens
		merged.Stats.Replies = old.Stats.Replies
	}
	if !scope.IncludesLeads() {
		merged.Stats.Leads = old.Stats.Leads
	}
	return merged
}
