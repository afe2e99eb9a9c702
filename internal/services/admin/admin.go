// Package admin provides the /admin/* HTML fragment endpoints.
package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	admincomp "github.com/workledger/workledger-go/internal/components/admin"
	"github.com/workledger/workledger-go/internal/components/api"
	"github.com/workledger/workledger-go/internal/frameworks/service"
	svccfg "github.com/workledger/workledger-go/internal/frameworks/service/cfg"
	"github.com/workledger/workledger-go/internal/frameworks/service/httpwrap"
	"github.com/workledger/workledger-go/internal/platform/deps"
	"github.com/workledger/workledger-go/internal/platform/http/auth"
)

func init() {
	service.MustRegister("admin", New)
}

// Config holds admin service configuration.
type Config struct{}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {}

// Service serves the moderator-facing HTML fragments.
type Service struct {
	router chi.Router
	conf   *Config
	log    *slog.Logger
}

// New creates a new admin service.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "admin", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}

	handler := admincomp.NewHandler(d.InvoiceRepo, d.SuggestionRepo, d.Differ)

	r := chi.NewRouter()
	r.Use(requireAdmin)
	r.Route("/invoices/{id}", func(r chi.Router) {
		r.Get("/", handler.InvoiceFragment)
		r.Get("/preview", handler.PreviewFragment)
		r.Get("/diff", handler.DiffFragment)
	})

	return &Service{router: r, conf: &c, log: log}, nil
}

// requireAdmin rejects session users without an admin role. The session
// itself is enforced by the server's auth middleware; this adds the role
// check on top.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUserFromContext(r.Context())
		if user == nil {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
			return
		}
		if !user.IsAdmin() {
			api.WriteForbidden(w, api.ReasonUnauthorized, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the service's HTTP handler with RawPath clearing.
func (s *Service) Handler() http.Handler {
	return httpwrap.ClearRawPath(s.router)
}

// Prefix returns the URL prefix for this service.
func (s *Service) Prefix() string {
	return "admin"
}

// Unprotected returns paths that don't require session authentication.
func (s *Service) Unprotected() []string {
	return nil
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}
