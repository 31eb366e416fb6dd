package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledgermatch/internal/api/dto"
	"github.com/eshaffer321/ledgermatch/internal/application/service"
)

// SettlementsHandler handles settlement history requests.
type SettlementsHandler struct {
	*Base
}

// NewSettlementsHandler creates a new settlements handler.
func NewSettlementsHandler(svc *service.ReconcileService) *SettlementsHandler {
	return &SettlementsHandler{
		Base: NewBase(svc),
	}
}

// List handles GET /api/ledger/{id}/settlements.
func (h *SettlementsHandler) List(w http.ResponseWriter, r *http.Request) {
	ledgerID := chi.URLParam(r, "id")
	if ledgerID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("ledger ID is required"))
		return
	}

	settlements, err := h.svc.ListSettlements(r.Context(), ledgerID)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.NewSettlementListResponse(ledgerID, settlements))
}
