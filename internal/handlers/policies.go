package handlers

import (
	"net/http"

	"github.com/modvault/modvault/internal/ratelimit"
)

// PolicyResponse describes one rate limit policy.
type PolicyResponse struct {
	Name          string `json:"name"`
	Identifier    string `json:"identifier"`
	MaxRequests   int    `json:"max_requests"`
	WindowSeconds int    `json:"window_seconds"`
}

// PoliciesResponse is the body of the policy listing endpoint.
type PoliciesResponse struct {
	Enabled  bool             `json:"enabled"`
	Policies []PolicyResponse `json:"policies"`
}

// PolicyHandler exposes the active policy catalog.
type PolicyHandler struct {
	catalog *ratelimit.Catalog
	enabled bool
}

// NewPolicyHandler creates a PolicyHandler.
func NewPolicyHandler(catalog *ratelimit.Catalog, enabled bool) *PolicyHandler {
	return &PolicyHandler{catalog: catalog, enabled: enabled}
}

// List handles GET /api/v1/ratelimit/policies.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies := h.catalog.Policies()
	resp := PoliciesResponse{
		Enabled:  h.enabled,
		Policies: make([]PolicyResponse, 0, len(policies)),
	}
	for _, p := range policies {
		resp.Policies = append(resp.Policies, PolicyResponse{
			Name:          p.Name,
			Identifier:    p.Identifier,
			MaxRequests:   p.MaxRequests,
			WindowSeconds: p.WindowSeconds,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
