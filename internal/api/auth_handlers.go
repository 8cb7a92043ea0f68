package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/api/helpers"
	custommw "github.com/palisade-io/palisade/internal/api/middleware"
	"github.com/palisade-io/palisade/internal/auth"
	"github.com/palisade-io/palisade/internal/domain"
)

// AuthHandler serves the authentication surface: login, refresh, logout.
type AuthHandler struct {
	service *auth.Service
}

func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id"`
	MFACode  string `json:"mfa_code,omitempty"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
}

// Login authenticates credentials and returns a fresh session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindInvalidInput, "invalid tenant id"))
		return
	}

	session, err := h.service.Authenticate(r.Context(), domain.Credentials{
		Email:    req.Email,
		Password: req.Password,
		TenantID: tenantID,
		MFACode:  req.MFACode,
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		UserID:    session.UserID,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id"`
}

// Register creates a new user in the given tenant.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindInvalidInput, "invalid tenant id"))
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		TenantID: tenantID,
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, user)
}

type refreshRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type refreshResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Refresh rotates a session. The session is named either by body
// {session_id} or implicitly by a bearer token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var sessionID uuid.UUID

	var req refreshRequest
	if r.ContentLength > 0 {
		if err := helpers.DecodeJSON(r, &req); err != nil {
			helpers.RespondError(w, r, err)
			return
		}
	}

	switch {
	case req.SessionID != "":
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			helpers.RespondError(w, r, domain.E(domain.KindInvalidInput, "invalid session id"))
			return
		}
		sessionID = id
	default:
		session, err := h.bearerSession(r)
		if err != nil {
			helpers.RespondError(w, r, err)
			return
		}
		sessionID = session.ID
	}

	fresh, err := h.service.RefreshSession(r.Context(), sessionID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, refreshResponse{
		Token:     fresh.Token,
		ExpiresAt: fresh.ExpiresAt,
	})
}

// Logout revokes the bearer's session and answers 204. A token whose session
// is already revoked or expired is rejected with 401.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, err := h.bearerSession(r)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.Logout(r.Context(), session.ID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes every session of the authenticated user.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, err := custommw.GetUserID(r.Context())
	if err != nil {
		helpers.RespondError(w, r, domain.E(domain.KindUnauthenticated, "not authenticated"))
		return
	}

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// bearerSession resolves the Authorization header to a live session.
func (h *AuthHandler) bearerSession(r *http.Request) (*domain.Session, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	return h.service.ValidateSession(r.Context(), token)
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", domain.E(domain.KindUnauthenticated, "authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", domain.E(domain.KindUnauthenticated, "invalid authorization format")
	}
	return parts[1], nil
}
