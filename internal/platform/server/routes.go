package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/workledger/workledger-go/internal/frameworks/service"
	"github.com/workledger/workledger-go/internal/platform/deps"
	appmw "github.com/workledger/workledger-go/internal/platform/http/middleware"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
}

// routeGroups defines all endpoint groups and their auth requirements.
// This table is the single source of truth for routing decisions.
var routeGroups = []RouteGroup{
	{Name: "api", PathPrefix: "/api", RequiresAuth: true},     // exceptions via Service.Unprotected()
	{Name: "admin", PathPrefix: "/admin", RequiresAuth: true}, // moderator HTML fragments
}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// IsAuthRequired checks if a given path requires authentication.
// The mountedServices slice supplies per-service exceptions via
// Service.Unprotected().
func IsAuthRequired(path string, basePath string, mountedServices []service.Service) bool {
	for _, svc := range mountedServices {
		if svc == nil {
			continue
		}
		svcBase := basePath
		if prefix := svc.Prefix(); prefix != "" {
			svcBase += "/" + prefix
		}
		for _, unprotected := range svc.Unprotected() {
			if pathMatchesPrefix(path, svcBase+unprotected) {
				return false
			}
		}
	}

	for _, rg := range routeGroups {
		if pathMatchesPrefix(path, basePath+rg.PathPrefix) {
			return rg.RequiresAuth
		}
	}

	// Default: require auth for unknown paths.
	return true
}

// mountService mounts a service and tracks it for lifecycle management.
func (s *Server) mountService(r chi.Router, svc service.Service) {
	if svc == nil {
		return
	}

	var handler http.Handler = svc.Handler()
	if prefix := svc.Prefix(); prefix != "" {
		r.Mount("/"+prefix, handler)
	} else {
		r.Mount("/", handler)
	}

	s.mountedServices = append(s.mountedServices, svc)
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		if path[len(prefix)] == '/' {
			return true
		}
	}
	return false
}

// setupRoutes creates the chi router with all route groups mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Global middleware stack (order matters for correct logging).
	// RequestID must come first so GetReqID works in RequestLoggerMiddleware.
	// The access log wraps the response writer and Recoverer writes through
	// it, so panics are logged with the right status.
	r.Use(middleware.RequestID)
	r.Use(appmw.RequestLoggerMiddleware(s.logger, deps.GetDeps().RealIP))
	r.Use(appmw.AccessLogMiddleware(s.logger, deps.GetDeps().RealIP))
	r.Use(middleware.Recoverer)

	// Auth middleware for all routes (checks IsAuthRequired)
	r.Use(s.authMiddleware)

	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, func(r chi.Router) {
			s.mountAppEndpoints(r)
		})
	} else {
		s.mountAppEndpoints(r)
	}

	return r
}

// mountAppEndpoints mounts app endpoints (may be under base path).
func (s *Server) mountAppEndpoints(r chi.Router) {
	s.mountService(r, s.apiSvc)
	s.mountService(r, s.adminSvc)
}
