package web

import (
	"net/http"

	"stock-ledger/internal/app"
)

const defaultRankingLimit = 10

// apiPerformanceStats handles GET /api/v1/stats/performance?from=&to=&limit=
// limit=0 returns every item sold.
func (h *Handler) apiPerformanceStats(w http.ResponseWriter, r *http.Request) {
	limit := defaultRankingLimit
	if r.URL.Query().Has("limit") {
		n, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		if n < 0 {
			writeError(w, r, "limit cannot be negative", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}

	report, err := h.svc.GetPerformanceStats(r.Context(), actor(r), app.PerformanceRequest{
		Dates: datesFromQuery(r),
		Limit: limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// apiInventoryStats handles GET /api/v1/stats/inventory
func (h *Handler) apiInventoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetInventoryStats(r.Context(), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stats)
}
