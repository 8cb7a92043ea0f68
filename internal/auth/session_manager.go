package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/domain"
)

// SessionManager issues signed session tokens, validates them against both
// the signature and the store, rotates them on refresh, and revokes them by
// session id or by user.
type SessionManager struct {
	store    SessionStore
	provider TokenProvider
	ttl      time.Duration
}

func NewSessionManager(store SessionStore, provider TokenProvider, ttl time.Duration) *SessionManager {
	return &SessionManager{store: store, provider: provider, ttl: ttl}
}

// Create issues a fresh session for the user: random session id, signed
// token with jti=sid, persisted through the store as one atomic write.
func (m *SessionManager) Create(ctx context.Context, user *domain.User) (*domain.Session, error) {
	now := time.Now().UTC()
	sessionID := uuid.New()
	expiresAt := now.Add(m.ttl)

	token, err := m.provider.Generate(user.ID, user.TenantID, sessionID, expiresAt)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "failed to sign session token", err)
	}

	session := &domain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	if err := m.store.Store(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate checks the token signature, issuer, audience, and expiry, then
// requires the session to exist in the store. A signature-valid token whose
// session is missing is treated as revoked: the token alone is never trusted.
func (m *SessionManager) Validate(ctx context.Context, token string) (*domain.Session, error) {
	if _, err := m.provider.Validate(token); err != nil {
		return nil, domain.Wrap(domain.KindUnauthenticated, "invalid session token", err)
	}

	session, err := m.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.E(domain.KindUnauthenticated, "session revoked or expired")
	}

	if session.Expired() {
		if err := m.store.Remove(ctx, session.ID); err != nil {
			return nil, err
		}
		return nil, domain.E(domain.KindUnauthenticated, "session expired")
	}

	return session, nil
}

// Refresh rotates the session: a brand-new session (new id, token, expiry)
// is stored first, then the old one is removed. A failure between the two
// leaves both alive until the old TTL collects it, never neither.
func (m *SessionManager) Refresh(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	old, err := m.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if old == nil || old.Expired() {
		return nil, domain.E(domain.KindUnauthenticated, "session not found")
	}

	fresh, err := m.Create(ctx, &domain.User{ID: old.UserID, TenantID: old.TenantID})
	if err != nil {
		return nil, err
	}

	if err := m.store.Remove(ctx, old.ID); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Remove revokes a single session. Removing an absent session is a no-op.
func (m *SessionManager) Remove(ctx context.Context, sessionID uuid.UUID) error {
	return m.store.Remove(ctx, sessionID)
}

// RemoveAllForUser revokes every session the user holds.
func (m *SessionManager) RemoveAllForUser(ctx context.Context, userID uuid.UUID) error {
	return m.store.RemoveAllForUser(ctx, userID)
}

// SessionsForUser lists the session ids recorded for the user. Sessions that
// have expired but were not yet pruned from the user's set are included.
func (m *SessionManager) SessionsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return m.store.SessionIDsForUser(ctx, userID)
}
