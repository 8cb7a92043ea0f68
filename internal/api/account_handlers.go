package api

import (
	"net/http"

	"github.com/palisade-io/palisade/internal/api/helpers"
	custommw "github.com/palisade-io/palisade/internal/api/middleware"
	"github.com/palisade-io/palisade/internal/domain"
)

// Me returns the authenticated user, roles included.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := custommw.GetUserID(r.Context())
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindUnauthenticated, "not authenticated"))
		return
	}
	tenantID, err := custommw.GetTenantID(r.Context())
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindUnauthenticated, "not authenticated"))
		return
	}

	user, err := h.service.GetUser(r.Context(), userID, tenantID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, user)
}

type mfaSetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// SetupMFA starts enrollment: a fresh secret and its provisioning URI.
// Nothing is stored until the caller proves possession via ActivateMFA.
func (h *AuthHandler) SetupMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := custommw.GetUserID(r.Context())
	tenantID, _ := custommw.GetTenantID(r.Context())

	secret, uri, err := h.service.BeginMFAEnrollment(r.Context(), userID, tenantID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, mfaSetupResponse{Secret: secret, ProvisioningURI: uri})
}

type mfaActivateRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// ActivateMFA completes enrollment with a proof code.
func (h *AuthHandler) ActivateMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := custommw.GetUserID(r.Context())
	tenantID, _ := custommw.GetTenantID(r.Context())

	var req mfaActivateRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	if req.Secret == "" || req.Code == "" {
		helpers.RespondError(w, r, domain.E(domain.KindInvalidInput, "secret and code are required"))
		return
	}

	if err := h.service.EnableMFA(r.Context(), userID, tenantID, req.Secret, req.Code); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DisableMFA turns MFA off for the authenticated user.
func (h *AuthHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := custommw.GetUserID(r.Context())
	tenantID, _ := custommw.GetTenantID(r.Context())

	if err := h.service.DisableMFA(r.Context(), userID, tenantID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
