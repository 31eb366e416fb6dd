package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledgermatch/internal/api/dto"
	"github.com/eshaffer321/ledgermatch/internal/application/service"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/storage"
)

const maxRunLimit = 100

// RunsHandler handles stored run requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(svc *service.ReconcileService) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(svc),
	}
}

// List handles GET /api/runs - returns stored runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	params := dto.DefaultRunListParams()
	params.Kind = r.URL.Query().Get("kind")
	params.Limit = ParseIntParam(r, "limit", params.Limit)
	params.Offset = ParseIntParam(r, "offset", params.Offset)
	if params.Limit <= 0 {
		params.Limit = dto.DefaultRunListParams().Limit
	}
	if params.Limit > maxRunLimit {
		params.Limit = maxRunLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	if params.Kind != "" && params.Kind != storage.KindBankReconciliation && params.Kind != storage.KindVendorRegister {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("unknown run kind "+params.Kind))
		return
	}

	result, err := h.svc.ListRuns(r.Context(), storage.RunFilters{
		Kind:   params.Kind,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	response := dto.RunListResponse{
		Runs:       make([]dto.RunResponse, 0, len(result.Runs)),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	for _, run := range result.Runs {
		response.Runs = append(response.Runs, dto.NewRunResponse(run, false))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single run with its result.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	if run == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.NewRunResponse(run, true))
}
