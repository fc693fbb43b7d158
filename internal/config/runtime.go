package config

import (
	"slices"
	"strings"
	"sync"
)

// Runtime holds the settings the dashboard can change while the process is
// running (POST /api/config). It is constructed once at startup from the
// resolved Config and shared by the API client and the refresh orchestrator.
type Runtime struct {
	mu          sync.RWMutex
	apiKey      string
	campaignIDs []int64
}

// NewRuntime seeds the runtime settings from the Mailshake config.
func NewRuntime(cfg MailshakeConfig) *Runtime {
	return &Runtime{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		campaignIDs: slices.Clone(cfg.CampaignIDs),
	}
}

// APIKey returns the current Mailshake credential.
func (r *Runtime) APIKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.apiKey
}

// SetAPIKey replaces the credential. Blank keys are ignored.
func (r *Runtime) SetAPIKey(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	r.mu.Lock()
	r.apiKey = key
	r.mu.Unlock()
}

// CampaignIDs returns a copy of the fallback campaign list.
func (r *Runtime) CampaignIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.campaignIDs)
}

// SetCampaignIDs replaces the fallback campaign list. An empty list is ignored.
func (r *Runtime) SetCampaignIDs(ids []int64) {
	if len(ids) == 0 {
		return
	}
	r.mu.Lock()
	r.campaignIDs = slices.Clone(ids)
	r.mu.Unlock()
}
