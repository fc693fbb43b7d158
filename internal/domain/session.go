package domain

import (
	"slices"
	"time"
)

// RefreshSession is the bookkeeping of one in-flight refresh pass. It lets a
// pass that died halfway resume without redoing completed campaigns.
type RefreshSession struct {
	ID                 string     `json:"id"`
	CompletedCampaigns []string   `json:"completedCampaigns"`
	StartedAt          *time.Time `json:"startedAt"`
}

// Has reports whether id was completed in this session.
func (s *RefreshSession) Has(id string) bool {
	return s != nil && slices.Contains(s.CompletedCampaigns, id)
}

// Add records id as completed. Adding twice is a no-op.
func (s *RefreshSession) Add(id string) {
	if !s.Has(id) {
		s.CompletedCampaigns = append(s.CompletedCampaigns, id)
	}
}

// Empty reports whether there is nothing to resume from.
func (s *RefreshSession) Empty() bool {
	return s == nil || len(s.CompletedCampaigns) == 0
}

// Active reports whether the session is younger than ttl at now.
// A session without a start time is never active.
func (s *RefreshSession) Active(now time.Time, ttl time.Duration) bool {
	if s == nil || s.StartedAt == nil {
		return false
	}
	return now.Sub(*s.StartedAt) < ttl
}

// Clone returns a deep copy.
func (s *RefreshSession) Clone() *RefreshSession {
	if s == nil {
		return nil
	}
	c := &RefreshSession{ID: s.ID, CompletedCampaigns: slices.Clone(s.CompletedCampaigns)}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	return c
}
