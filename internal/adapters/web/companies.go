package web

import (
	"net/http"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"
)

// apiListCompanies handles GET /api/v1/companies?type=&search=&offset=&limit=
func (h *Handler) apiListCompanies(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	result, err := h.svc.ListCompanies(r.Context(), actor(r), core.CompanyFilter{
		Type:   core.CompanyType(q.Get("type")),
		Search: q.Get("search"),
		Page:   page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateCompany handles POST /api/v1/companies
func (h *Handler) apiCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req core.CreateCompanyInput
	if !decodeJSON(w, r, &req) {
		return
	}
	company, err := h.svc.CreateCompany(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, company)
}

// apiGetCompany handles GET /api/v1/companies/{id}
func (h *Handler) apiGetCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	company, err := h.svc.GetCompany(r.Context(), actor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, company)
}

// apiUpdateCompany handles PATCH /api/v1/companies/{id}
func (h *Handler) apiUpdateCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req core.UpdateCompanyInput
	if !decodeJSON(w, r, &req) {
		return
	}
	company, err := h.svc.UpdateCompany(r.Context(), actor(r), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, company)
}

// apiCompanyActivity handles GET /api/v1/companies/{id}/activity?offset=&limit=
func (h *Handler) apiCompanyActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListCompanyActivity(r.Context(), actor(r), id, page)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCompanyBalance handles GET /api/v1/companies/{id}/balance
func (h *Handler) apiCompanyBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetCompanyBalance(r.Context(), actor(r), app.BalanceRequest{CompanyID: &id})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Company)
}

// apiListBalances handles GET /api/v1/balances?type=&search=&offset=&limit=
func (h *Handler) apiListBalances(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	result, err := h.svc.GetCompanyBalance(r.Context(), actor(r), app.BalanceRequest{
		Type:   core.CompanyType(q.Get("type")),
		Search: q.Get("search"),
		Page:   page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListPayments handles GET /api/v1/payments?company_id=&company_type=&kind=&from=&to=&offset=&limit=
func (h *Handler) apiListPayments(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	companyID, ok := queryInt(w, r, "company_id")
	if !ok {
		return
	}
	q := r.URL.Query()
	result, err := h.svc.ListPayments(r.Context(), actor(r), app.ListPaymentsRequest{
		CompanyID:   companyID,
		CompanyType: core.CompanyType(q.Get("company_type")),
		Kind:        core.PaymentKind(q.Get("kind")),
		Dates:       datesFromQuery(r),
		Page:        page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRecordPayment handles POST /api/v1/payments
func (h *Handler) apiRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req core.RecordPaymentInput
	if !decodeJSON(w, r, &req) {
		return
	}
	payment, err := h.svc.RecordPayment(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, payment)
}
