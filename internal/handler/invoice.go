package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/billing-manager/internal/apperror"
	"github.com/sakif/billing-manager/internal/auth"
	"github.com/sakif/billing-manager/internal/service"
)

// ============================================
// INVOICE ENDPOINTS
// ============================================

// InvoiceHandler serves the /api/invoices endpoints. Every route is behind
// the auth middleware; the user and token always come from the context.
type InvoiceHandler struct {
	service *service.InvoiceService
}

func NewInvoiceHandler(svc *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: svc}
}

// caller pulls the authenticated identity out of the request context.
func caller(r *http.Request) (userID, token string, err error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return "", "", apperror.Unauthorized("Authentication required. Please sign in.")
	}
	token, _ = auth.TokenFromContext(r.Context())
	return user.ID, token, nil
}

// List handles GET /api/invoices.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, token, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	invoices, err := h.service.List(r.Context(), token, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", invoices)
}

// Get handles GET /api/invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, token, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	invoice, err := h.service.Get(r.Context(), token, userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", invoice)
}

// Create handles POST /api/invoices.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, token, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.CreateInvoiceInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	invoice, err := h.service.Create(r.Context(), token, userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Invoice created successfully", invoice)
}

// Update handles PUT /api/invoices/{id}.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, token, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.UpdateInvoiceInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	invoice, err := h.service.Update(r.Context(), token, userID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Invoice updated successfully", invoice)
}

// Delete handles DELETE /api/invoices/{id}.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, token, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), token, userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Invoice deleted successfully", nil)
}

// Stats handles GET /api/invoices/stats/summary.
func (h *InvoiceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, token, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), token, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", stats)
}
