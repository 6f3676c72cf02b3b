package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-auth/internal/auth"
)

// HealthHandler reports liveness together with the number of enrolled identities.
type HealthHandler struct {
	service *auth.Service
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *auth.Service) *HealthHandler {
	return &HealthHandler{service: service}
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status     string `json:"status"`
	Identities int    `json:"identities"`
}

// Health handles the health check endpoint.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Count(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"message": "identity store unavailable",
		})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Identities: n})
}
