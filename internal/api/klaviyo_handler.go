package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/mailshake-monitor/internal/klaviyo"
	"github.com/ignite/mailshake-monitor/internal/pkg/httputil"
)

// CheckKlaviyoEvents reports which milestones the profile behind
// {"email": ...} has reached.
func (h *Handlers) CheckKlaviyoEvents(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" {
		httputil.BadRequest(w, "Email is required")
		return
	}

	result, err := h.klaviyo.CheckEvents(r.Context(), email)
	switch {
	case errors.Is(err, klaviyo.ErrProfileNotFound):
		httputil.JSON(w, http.StatusNotFound, map[string]string{"error": "Profile not found", "email": email})
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, result)
	}
}
