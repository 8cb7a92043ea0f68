package middleware

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	SessionKey  contextKey = "session"
	UserIDKey   contextKey = "user_id"
	TenantIDKey contextKey = "tenant_id"
)

// GetSession extracts the validated session from context.
func GetSession(ctx context.Context) (*domain.Session, error) {
	val := ctx.Value(SessionKey)
	if val == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	session, ok := val.(*domain.Session)
	if !ok {
		return nil, fmt.Errorf("session has wrong type: %T", val)
	}
	return session, nil
}

// GetUserID safely extracts the user ID from context.
func GetUserID(ctx context.Context) (uuid.UUID, error) {
	val := ctx.Value(UserIDKey)
	if val == nil {
		return uuid.Nil, fmt.Errorf("user_id not found in context")
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("user_id has wrong type: %T", val)
	}
	return id, nil
}

// GetTenantID safely extracts the tenant ID from context.
func GetTenantID(ctx context.Context) (uuid.UUID, error) {
	val := ctx.Value(TenantIDKey)
	if val == nil {
		return uuid.Nil, fmt.Errorf("tenant_id not found in context")
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("tenant_id has wrong type: %T", val)
	}
	return id, nil
}
