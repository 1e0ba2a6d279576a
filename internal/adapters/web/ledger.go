package web

import (
	"net/http"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"
)

// apiListTransactions handles
// GET /api/v1/transactions?barcode=&item_id=&direction=&company_id=&order_id=&from=&to=&offset=&limit=
func (h *Handler) apiListTransactions(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	itemID, ok := queryInt(w, r, "item_id")
	if !ok {
		return
	}
	companyID, ok := queryInt(w, r, "company_id")
	if !ok {
		return
	}
	orderID, ok := queryInt(w, r, "order_id")
	if !ok {
		return
	}

	q := r.URL.Query()
	result, err := h.svc.ListTransactions(r.Context(), actor(r), app.ListTransactionsRequest{
		Barcode:   q.Get("barcode"),
		ItemID:    itemID,
		Direction: core.Direction(q.Get("direction")),
		CompanyID: companyID,
		OrderID:   orderID,
		Dates:     datesFromQuery(r),
		Page:      page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCancelTransaction handles POST /api/v1/transactions/{id}/cancel
func (h *Handler) apiCancelTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.CancelTransaction(r.Context(), actor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
