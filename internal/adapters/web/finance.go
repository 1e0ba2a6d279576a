package web

import (
	"net/http"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"
)

// apiListOtherTransactions handles GET /api/v1/finance/other?kind=&from=&to=&offset=&limit=
func (h *Handler) apiListOtherTransactions(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListOtherTransactions(r.Context(), actor(r), app.ListOtherTransactionsRequest{
		Kind:  core.OtherKind(r.URL.Query().Get("kind")),
		Dates: datesFromQuery(r),
		Page:  page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRecordOtherTransaction handles POST /api/v1/finance/other
func (h *Handler) apiRecordOtherTransaction(w http.ResponseWriter, r *http.Request) {
	var req core.RecordOtherInput
	if !decodeJSON(w, r, &req) {
		return
	}
	ot, err := h.svc.RecordOtherTransaction(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, ot)
}

// apiDeleteOtherTransaction handles DELETE /api/v1/finance/other/{id}
func (h *Handler) apiDeleteOtherTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOtherTransaction(r.Context(), actor(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiProfitStatistics handles GET /api/v1/finance/profit?from=&to=
func (h *Handler) apiProfitStatistics(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetProfitStatistics(r.Context(), actor(r), datesFromQuery(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListOperationLogs handles GET /api/v1/logs?type=&from=&to=&offset=&limit= (owner only).
func (h *Handler) apiListOperationLogs(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListOperationLogs(r.Context(), actor(r), app.ListOperationLogsRequest{
		OperationType: r.URL.Query().Get("type"),
		Dates:         datesFromQuery(r),
		Page:          page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
