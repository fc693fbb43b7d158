package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ignite/mailshake-monitor/internal/domain"
	"github.com/ignite/mailshake-monitor/internal/mailshake"
	"github.com/ignite/mailshake-monitor/internal/pkg/httputil"
	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
)

type configInfo struct {
	OK          bool    `json:"ok,omitempty"`
	CampaignIDs []int64 `json:"campaignIds"`
	APIKeySet   bool    `json:"apiKeySet"`
}

// GetConfigInfo reports the fallback campaign list and whether a key is set.
func (h *Handlers) GetConfigInfo(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, configInfo{
		CampaignIDs: h.runtime.CampaignIDs(),
		APIKeySet:   h.runtime.APIKey() != "",
	})
}

// UpdateConfig overrides the API key and/or campaign list for the life of
// the process. campaignIds may be a JSON array or a whitespace separated
// string.
func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey      string          `json:"apiKey"`
		CampaignIDs json.RawMessage `json:"campaignIds"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		httputil.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Invalid JSON"})
		return
	}

	if body.APIKey != "" {
		h.runtime.SetAPIKey(body.APIKey)
		logger.Info("api: mailshake api key replaced")
	}
	if ids := parseIDList(body.CampaignIDs); len(ids) > 0 {
		h.runtime.SetCampaignIDs(ids)
		logger.Info("api: campaign list replaced", "count", len(ids))
	}

	httputil.OK(w, configInfo{
		OK:          true,
		CampaignIDs: h.runtime.CampaignIDs(),
		APIKeySet:   h.runtime.APIKey() != "",
	})
}

func parseIDList(raw json.RawMessage) []int64 {
	if len(raw) == 0 {
		return nil
	}
	var list []mailshake.FlexID
	if err := json.Unmarshal(raw, &list); err == nil {
		ids := make([]int64, 0, len(list))
		for _, v := range list {
			if n := v.Int64(); n > 0 {
				ids = append(ids, n)
			}
		}
		return ids
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domain.ParseCampaignIDs(strings.TrimSpace(s))
	}
	return nil
}
