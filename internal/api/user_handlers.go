package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/api/helpers"
	custommw "github.com/palisade-io/palisade/internal/api/middleware"
	"github.com/palisade-io/palisade/internal/domain"
)

// User administration within the caller's tenant. Access is gated by the
// RBAC evaluator over the "users" resource.

func (h *AuthHandler) requirePermission(w http.ResponseWriter, r *http.Request, action domain.Action) (tenantID uuid.UUID, ok bool) {
	userID, err := custommw.GetUserID(r.Context())
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindUnauthenticated, "not authenticated"))
		return uuid.Nil, false
	}
	tenantID, err = custommw.GetTenantID(r.Context())
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindUnauthenticated, "not authenticated"))
		return uuid.Nil, false
	}

	actor, err := h.service.GetUser(r.Context(), userID, tenantID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return uuid.Nil, false
	}

	if !h.service.CheckPermission(actor, action, "users") {
		helpers.RespondError(w, r, domain.E(domain.KindForbidden, "missing permission on users"))
		return uuid.Nil, false
	}
	return tenantID, true
}

// ListUsers returns every user of the caller's tenant.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.requirePermission(w, r, domain.ActionList)
	if !ok {
		return
	}

	users, err := h.service.ListUsers(r.Context(), tenantID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	if users == nil {
		users = []*domain.User{}
	}
	helpers.RespondJSON(w, http.StatusOK, users)
}

type updateRolesRequest struct {
	Roles []domain.Role `json:"roles"`
}

// UpdateRoles replaces the target user's roles. Cached RBAC decisions for
// the target die with the change.
func (h *AuthHandler) UpdateRoles(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.requirePermission(w, r, domain.ActionUpdate)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindInvalidInput, "invalid user id"))
		return
	}

	var req updateRolesRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.UpdateRoles(r.Context(), targetID, tenantID, req.Roles); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	user, err := h.service.GetUser(r.Context(), targetID, tenantID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, user)
}

// RemoveUser deletes the target user and revokes its sessions.
func (h *AuthHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.requirePermission(w, r, domain.ActionDelete)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindInvalidInput, "invalid user id"))
		return
	}

	if err := h.service.DeleteUser(r.Context(), targetID, tenantID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
