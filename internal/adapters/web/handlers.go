package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and what the routes need to serve it.
type Handler struct {
	svc       app.ApplicationService
	log       *zap.Logger
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, log *zap.Logger, allowedOrigins, jwtSecret string) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		svc:       svc,
		log:       log,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/me", h.me)

		// Items and direct movements
		r.Get("/items", h.apiListItems)
		r.Post("/items", h.apiRegisterItem)
		r.Get("/items/{barcode}", h.apiGetItem)
		r.Patch("/items/{barcode}", h.apiUpdateItem)
		r.Post("/items/{barcode}/toggle", h.apiToggleItem)
		r.Post("/items/{barcode}/retire", h.apiRetireItem)
		r.Post("/stock/in", h.apiStockIn)
		r.Post("/stock/out", h.apiStockOut)

		// Stock orders
		r.Get("/orders", h.apiListOrders)
		r.Post("/orders", h.apiCreateOrder)
		r.Get("/orders/{id}", h.apiGetOrder)
		r.Patch("/orders/{id}", h.apiUpdateOrder)
		r.Post("/orders/{id}/confirm", h.apiConfirmOrder)
		r.Post("/orders/{id}/cancel", h.apiCancelOrder)

		// Ledger
		r.Get("/transactions", h.apiListTransactions)
		r.Post("/transactions/{id}/cancel", h.apiCancelTransaction)

		// Reports
		r.Get("/stats/performance", h.apiPerformanceStats)
		r.Get("/stats/inventory", h.apiInventoryStats)

		// Trading partners
		r.Get("/companies", h.apiListCompanies)
		r.Post("/companies", h.apiCreateCompany)
		r.Get("/companies/{id}", h.apiGetCompany)
		r.Patch("/companies/{id}", h.apiUpdateCompany)
		r.Get("/companies/{id}/activity", h.apiCompanyActivity)
		r.Get("/companies/{id}/balance", h.apiCompanyBalance)
		r.Get("/balances", h.apiListBalances)
		r.Get("/payments", h.apiListPayments)
		r.Post("/payments", h.apiRecordPayment)

		// Finance
		r.Get("/finance/other", h.apiListOtherTransactions)
		r.Post("/finance/other", h.apiRecordOtherTransaction)
		r.Delete("/finance/other/{id}", h.apiDeleteOtherTransaction)
		r.Get("/finance/profit", h.apiProfitStatistics)

		// Owner-only administration
		r.Group(func(r chi.Router) {
			r.Use(RequireOwner)
			r.Delete("/items/{barcode}", h.apiPurgeItem)
			r.Get("/logs", h.apiListOperationLogs)
		})
	})

	return r
}

// health returns service status and whether the database answers.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}

	if err := h.svc.Health(r.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		writeJSONStatus(w, http.StatusServiceUnavailable, response{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, response{Status: "ok", Database: "ok"})
}

// actor returns the authenticated actor. RequireAuth guarantees presence.
func actor(r *http.Request) core.Actor {
	a, _ := actorFromContext(r.Context())
	return a
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// idParam parses the {id} URL parameter, writing 400 when it is not a positive integer.
func idParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "id must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeError(w, r, name+" must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// queryBool parses an optional boolean query parameter; absent means nil.
func queryBool(w http.ResponseWriter, r *http.Request, name string) (*bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		writeError(w, r, name+" must be true or false", "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	return &b, true
}

// pageFromQuery reads offset and limit.
func pageFromQuery(w http.ResponseWriter, r *http.Request) (core.PageRequest, bool) {
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return core.PageRequest{}, false
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return core.PageRequest{}, false
	}
	return core.PageRequest{Offset: offset, Limit: limit}, true
}

// datesFromQuery reads the from/to range; parsing happens in the service.
func datesFromQuery(r *http.Request) app.DateRange {
	q := r.URL.Query()
	return app.DateRange{From: q.Get("from"), To: q.Get("to")}
}
