package middleware

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// SetSentryTenant adds tenant context to the Sentry scope.
func SetSentryTenant(_ context.Context, tenantID string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("tenant_id", tenantID)
	})
}

// SetSentryUser adds user context to the Sentry scope.
func SetSentryUser(_ context.Context, userID, ip string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: userID, IPAddress: ip})
	})
}
