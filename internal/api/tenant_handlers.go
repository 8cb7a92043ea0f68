package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/api/helpers"
	"github.com/palisade-io/palisade/internal/domain"
	"github.com/palisade-io/palisade/internal/tenant"
)

// TenantHandler serves tenant administration: simple database-backed entity
// management behind the authenticated surface.
type TenantHandler struct {
	service *tenant.Service
}

func NewTenantHandler(service *tenant.Service) *TenantHandler {
	return &TenantHandler{service: service}
}

type tenantRequest struct {
	Name   string  `json:"name"`
	Domain *string `json:"domain,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	input := tenant.CreateInput{Name: req.Name}
	if req.Domain != nil {
		input.Domain = *req.Domain
	}

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, created)
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.List(r.Context())
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []*domain.Tenant{}
	}
	helpers.RespondJSON(w, http.StatusOK, tenants)
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindInvalidInput, "invalid tenant id"))
		return
	}

	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, t)
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindInvalidInput, "invalid tenant id"))
		return
	}

	var req tenantRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	input := tenant.UpdateInput{Domain: req.Domain, Active: req.Active}
	if req.Name != "" {
		input.Name = &req.Name
	}

	updated, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, updated)
}

// Delete removes the tenant; its users cascade in the database and their
// sessions are revoked through the service.
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindInvalidInput, "invalid tenant id"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
