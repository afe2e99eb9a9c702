package server

import (
	"net/http"
	"strings"

	"github.com/workledger/workledger-go/internal/components/api"
	"github.com/workledger/workledger-go/internal/platform/appctx"
	"github.com/workledger/workledger-go/internal/platform/deps"
	"github.com/workledger/workledger-go/internal/platform/http/auth"
)

// authMiddleware enforces session authentication.
// Public endpoints (health, login, token-gated preview paths) bypass it.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthRequired(r.URL.Path, s.cfg.ExternalBasePath, s.mountedServices) {
			next.ServeHTTP(w, r)
			return
		}

		sessionToken := extractSessionToken(r)
		if sessionToken == "" {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
			return
		}

		d := deps.GetDeps()

		session, err := d.SessionRepo.Get(r.Context(), sessionToken)
		if err != nil {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "session not found or expired")
			return
		}

		if session.IsExpired() {
			api.WriteUnauthorized(w, api.ReasonSessionExpired, "session has expired")
			return
		}

		user, err := d.PartyRepo.Get(r.Context(), session.UserID)
		if err != nil {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "session user not found")
			return
		}

		ctx := auth.WithSession(r.Context(), session)
		ctx = auth.WithUser(ctx, user)

		// Enrich handler logger with user_id (handler-only, not access log).
		ctx = appctx.WithLogger(ctx, appctx.GetLogger(ctx).With("user_id", session.UserID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractSessionToken gets the session token from cookie or Authorization header.
func extractSessionToken(r *http.Request) string {
	cookie, err := r.Cookie("session")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}

	return ""
}
