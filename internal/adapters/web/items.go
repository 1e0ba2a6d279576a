package web

import (
	"net/http"
	"strconv"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/go-chi/chi/v5"
)

// apiListItems handles GET /api/v1/items?search=&active=&low_stock=&offset=&limit=
func (h *Handler) apiListItems(w http.ResponseWriter, r *http.Request) {
	active, ok := queryBool(w, r, "active")
	if !ok {
		return
	}
	lowStock, ok := queryBool(w, r, "low_stock")
	if !ok {
		return
	}
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}

	req := app.ListItemsRequest{
		Search: r.URL.Query().Get("search"),
		Active: active,
		Page:   page,
	}
	if lowStock != nil {
		req.LowStock = *lowStock
	}

	result, err := h.svc.ListItems(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRegisterItem handles POST /api/v1/items
func (h *Handler) apiRegisterItem(w http.ResponseWriter, r *http.Request) {
	var req core.RegisterItemInput
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.svc.RegisterItem(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, item)
}

// apiGetItem handles GET /api/v1/items/{barcode}
func (h *Handler) apiGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetItem(r.Context(), actor(r), chi.URLParam(r, "barcode"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, item)
}

// apiUpdateItem handles PATCH /api/v1/items/{barcode}
func (h *Handler) apiUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req core.UpdateItemInput
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.svc.UpdateItem(r.Context(), actor(r), chi.URLParam(r, "barcode"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, item)
}

func (h *Handler) apiToggleItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.ToggleItem(r.Context(), actor(r), chi.URLParam(r, "barcode"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, item)
}

func (h *Handler) apiRetireItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.RetireItem(r.Context(), actor(r), chi.URLParam(r, "barcode"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, item)
}

// apiPurgeItem handles DELETE /api/v1/items/{barcode}?purge_history=true (owner only).
func (h *Handler) apiPurgeItem(w http.ResponseWriter, r *http.Request) {
	purgeHistory := false
	if v := r.URL.Query().Get("purge_history"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, "purge_history must be true or false", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		purgeHistory = b
	}

	result, err := h.svc.PurgeItem(r.Context(), actor(r), chi.URLParam(r, "barcode"), purgeHistory)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiStockIn handles POST /api/v1/stock/in
func (h *Handler) apiStockIn(w http.ResponseWriter, r *http.Request) {
	var req core.StockMovementInput
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.StockIn(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiStockOut handles POST /api/v1/stock/out
func (h *Handler) apiStockOut(w http.ResponseWriter, r *http.Request) {
	var req core.StockMovementInput
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.StockOut(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
