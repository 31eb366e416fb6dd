package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eshaffer321/ledgermatch/internal/api/dto"
	"github.com/eshaffer321/ledgermatch/internal/application/service"
)

// MaxRequestBytes bounds a reconciliation request body.
const MaxRequestBytes = 32 << 20

// ReconciliationHandler handles matching requests.
type ReconciliationHandler struct {
	*Base
}

// NewReconciliationHandler creates a new reconciliation handler.
func NewReconciliationHandler(svc *service.ReconcileService) *ReconciliationHandler {
	return &ReconciliationHandler{
		Base: NewBase(svc),
	}
}

// RunMatching handles POST /api/reconciliation/run-matching.
func (h *ReconciliationHandler) RunMatching(w http.ResponseWriter, r *http.Request) {
	var body dto.RunMatchingRequest
	if !h.decode(w, r, &body) {
		return
	}

	settings := body.Settings.Apply(h.svc.Defaults())
	result, err := h.svc.Run(r.Context(), service.RunRequest{
		BankTransactions: body.Transactions(),
		LedgerEntries:    body.LedgerEntries(),
		Settings:         &settings,
		Persist:          body.Persist,
	})
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.RunMatchingResponse{
		Success:    true,
		RunID:      result.RunID,
		Persisted:  result.Persisted,
		DurationMs: result.Duration.Milliseconds(),
		Data:       dto.NewReconciliationResponse(result.Result),
	})
}

// VendorRegister handles POST /api/reconciliation/vendor-register.
func (h *ReconciliationHandler) VendorRegister(w http.ResponseWriter, r *http.Request) {
	var body dto.VendorRegisterRequest
	if !h.decode(w, r, &body) {
		return
	}

	settings := body.Settings.Apply(h.svc.Defaults())
	result, err := h.svc.ReconcileVendorRegister(r.Context(), service.VendorRunRequest{
		Request:  body.ToRegister(),
		Settings: &settings,
		Persist:  body.Persist,
	})
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.VendorRegisterResponse{
		Success:    true,
		RunID:      result.RunID,
		Persisted:  result.Persisted,
		DurationMs: result.Duration.Milliseconds(),
		Data:       dto.NewVendorRegisterData(result.Report),
	})
}

func (h *ReconciliationHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body: "+err.Error()))
		return false
	}
	return true
}
