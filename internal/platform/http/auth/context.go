// Package auth provides request-context access to the authenticated
// session and user.
package auth

import (
	"context"

	"github.com/workledger/workledger-go/internal/components/identity"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	userContextKey    contextKey = "user"
)

// WithSession stores the session in the context.
func WithSession(ctx context.Context, s *identity.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// WithUser stores the user in the context.
func WithUser(ctx context.Context, u *identity.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// GetSessionFromContext returns the session from request context, or nil.
func GetSessionFromContext(ctx context.Context) *identity.Session {
	s, _ := ctx.Value(sessionContextKey).(*identity.Session)
	return s
}

// GetUserFromContext returns the user from request context, or nil.
func GetUserFromContext(ctx context.Context) *identity.User {
	u, _ := ctx.Value(userContextKey).(*identity.User)
	return u
}
