package web

import (
	"net/http"

	"stock-ledger/internal/core"
)

// apiListOrders handles GET /api/v1/orders?search=&direction=&status=&offset=&limit=
func (h *Handler) apiListOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	result, err := h.svc.ListOrders(r.Context(), actor(r), core.OrderFilter{
		Search:    q.Get("search"),
		Direction: core.Direction(q.Get("direction")),
		Status:    core.OrderStatus(q.Get("status")),
		Page:      page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateOrder handles POST /api/v1/orders
func (h *Handler) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req core.CreateOrderInput
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, order)
}

// apiGetOrder handles GET /api/v1/orders/{id}
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), actor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// apiUpdateOrder handles PATCH /api/v1/orders/{id}. Send expected_version to
// detect concurrent edits.
func (h *Handler) apiUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req core.UpdateOrderInput
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.svc.UpdateOrder(r.Context(), actor(r), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// apiConfirmOrder handles POST /api/v1/orders/{id}/confirm
func (h *Handler) apiConfirmOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	order, err := h.svc.ConfirmOrder(r.Context(), actor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// apiCancelOrder handles POST /api/v1/orders/{id}/cancel
func (h *Handler) apiCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	order, err := h.svc.CancelOrder(r.Context(), actor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, order)
}
