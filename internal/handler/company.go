package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/service"
)

type CustomerResolver interface {
	FindOrCreate(ctx context.Context, contact model.Contact) (*model.GlobalCustomer, error)
}

type CustomerLinker interface {
	Link(ctx context.Context, customerID, companyID, addedBy string) (*model.CompanyCustomerLink, bool, error)
}

type PortalProvisioner interface {
	AddCustomerWithPortalAccount(ctx context.Context, contact model.Contact, companyID, addedBy string) (*service.ProvisionResult, error)
	CheckPortalStatus(ctx context.Context, customerID string) service.PortalStatus
	Deactivate(ctx context.Context, accountID, reason string) (*model.PortalAccount, error)
}

// CompanyHandler serves the service-key authenticated API used by company
// back offices.
type CompanyHandler struct {
	customers   CustomerResolver
	linker      CustomerLinker
	provisioner PortalProvisioner
}

func NewCompanyHandler(customers CustomerResolver, linker CustomerLinker, provisioner PortalProvisioner) *CompanyHandler {
	return &CompanyHandler{
		customers:   customers,
		linker:      linker,
		provisioner: provisioner,
	}
}

func (h *CompanyHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/customers", h.ResolveCustomer)
	r.Post("/customers/{customerId}/companies", h.LinkCompany)
	r.Get("/customers/{customerId}/portal-status", h.PortalStatus)
	r.Post("/portal/provision", h.Provision)
	r.Post("/portal-accounts/{accountId}/deactivate", h.Deactivate)

	return r
}

type resolveCustomerRequest struct {
	Contact model.Contact `json:"contact"`
}

type linkCompanyRequest struct {
	CompanyID string `json:"companyId" validate:"required,max=100"`
	AddedBy   string `json:"addedBy" validate:"omitempty,max=100"`
}

type provisionRequest struct {
	Contact   model.Contact `json:"contact"`
	CompanyID string        `json:"companyId" validate:"required,max=100"`
	AddedBy   string        `json:"addedBy" validate:"omitempty,max=100"`
}

type deactivateRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (h *CompanyHandler) ResolveCustomer(w http.ResponseWriter, r *http.Request) {
	var req resolveCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	customer, err := h.customers.FindOrCreate(r.Context(), req.Contact)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (h *CompanyHandler) LinkCompany(w http.ResponseWriter, r *http.Request) {
	var req linkCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	link, created, err := h.linker.Link(r.Context(), chi.URLParam(r, "customerId"), req.CompanyID, req.AddedBy)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"link": link, "created": created})
}

func (h *CompanyHandler) PortalStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provisioner.CheckPortalStatus(r.Context(), chi.URLParam(r, "customerId")))
}

func (h *CompanyHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.provisioner.AddCustomerWithPortalAccount(r.Context(), req.Contact, req.CompanyID, req.AddedBy)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if result.PortalAccount != nil && !result.IsExisting {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (h *CompanyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	var req deactivateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	account, err := h.provisioner.Deactivate(r.Context(), chi.URLParam(r, "accountId"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"account": account})
}
