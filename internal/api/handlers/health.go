package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eshaffer321/ledgermatch/internal/api/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	persistence bool
}

// NewHealthHandler creates a new health handler. persistence reports whether
// run history endpoints are available.
func NewHealthHandler(persistence bool) *HealthHandler {
	return &HealthHandler{persistence: persistence}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := dto.NewHealthResponse(h.persistence)
	_ = json.NewEncoder(w).Encode(response)
}
