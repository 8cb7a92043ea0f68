package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/palisade-io/palisade/internal/domain"
)

// SessionValidator is the slice of the authentication service this
// middleware needs.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*domain.Session, error)
}

// writeUnauthorized emits the standard envelope without importing helpers
// (helpers imports middleware for the request id and error code).
func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	RecordErrorCode(r.Context(), domain.KindUnauthenticated.String())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"message":"` + message + `","code":"unauthenticated"}}`))
}

// RequireSession validates the bearer token against both the signature and
// the session store, then injects session, user id, and tenant id into the
// request context. A token with a valid signature but no live session is
// rejected: revocation is instantaneous.
func RequireSession(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeUnauthorized(w, r, "invalid authorization format")
				return
			}

			session, err := validator.ValidateSession(r.Context(), parts[1])
			if err != nil {
				slog.Warn("session_rejected", "error", err, "ip", r.RemoteAddr)
				writeUnauthorized(w, r, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, session)
			ctx = context.WithValue(ctx, UserIDKey, session.UserID)
			ctx = context.WithValue(ctx, TenantIDKey, session.TenantID)

			SetSentryTenant(ctx, session.TenantID.String())
			SetSentryUser(ctx, session.UserID.String(), r.RemoteAddr)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
