package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record of an authenticated principal. It is
// referenced externally by the signed bearer token it carries. A session is
// valid iff it exists in the session store, has not expired, and its token
// signature verifies.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session's lifetime has passed.
func (s *Session) Expired() bool {
	return !time.Now().UTC().Before(s.ExpiresAt)
}

// Remaining returns the session's remaining lifetime, clamped to zero.
func (s *Session) Remaining() time.Duration {
	d := time.Until(s.ExpiresAt)
	if d < 0 {
		return 0
	}
	return d
}
