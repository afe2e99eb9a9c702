// Package api provides the /api/* endpoints.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/workledger/workledger-go/internal/components/admin"
	"github.com/workledger/workledger-go/internal/components/api"
	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/ledger"
	"github.com/workledger/workledger-go/internal/frameworks/service"
	svccfg "github.com/workledger/workledger-go/internal/frameworks/service/cfg"
	"github.com/workledger/workledger-go/internal/frameworks/service/httpwrap"
	"github.com/workledger/workledger-go/internal/interceptors"
	"github.com/workledger/workledger-go/internal/platform/deps"
	"github.com/workledger/workledger-go/internal/platform/http/auth"
)

func init() {
	service.MustRegister("api", New)
}

// Config holds api service configuration.
type Config struct {
	// Ratelimit holds rate limiting configuration for this service.
	Ratelimit RatelimitConfig `mapstructure:"ratelimit"`
}

// RatelimitConfig holds the per-service rate limiting opt-in.
type RatelimitConfig struct {
	// Profile is the ratelimit profile applied to login, from
	// [http.interceptors.ratelimit.profiles.<name>].
	Profile string `mapstructure:"profile"`

	// PublicProfile is the ratelimit profile applied to the token-gated
	// public endpoints (preview reads and suggestion submission).
	PublicProfile string `mapstructure:"public_profile"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {}

// Service is the API service.
type Service struct {
	router chi.Router
	conf   *Config
	log    *slog.Logger
}

// New creates a new API service.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "api", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}

	authHandler := api.NewAuthHandler(d.PartyRepo, d.SessionRepo, d.UserAuth)
	ledgerHandler := ledger.NewHandler(d.TaskRepo, d.ExpenseRepo)
	invoiceHandler := invoice.NewHandler(invoice.HandlerOptions{
		Invoices:     d.InvoiceRepo,
		Suggestions:  d.SuggestionRepo,
		Policy:       d.Policy,
		Previews:     d.PreviewTokens,
		Builder:      d.Builder,
		Applier:      d.Applier,
		Differ:       d.Differ,
		PreviewTTL:   time.Duration(d.Config.Preview.TTLSeconds) * time.Second,
		PublicOrigin: d.Config.PublicOrigin,
		BasePath:     d.Config.ExternalBasePath,
	})
	adminHandler := admin.NewHandler(d.InvoiceRepo, d.SuggestionRepo, d.Differ)

	loginMiddleware, err := buildRatelimit(c.Ratelimit.Profile, d.Config.HTTP.Interceptors, log)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	publicMiddleware, err := buildRatelimit(c.Ratelimit.PublicProfile, d.Config.HTTP.Interceptors, log)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	r := chi.NewRouter()

	// Health endpoint (public)
	r.Get("/healthz", api.HealthHandler)

	// Auth endpoints
	r.Route("/auth", func(r chi.Router) {
		if loginMiddleware != nil {
			r.With(loginMiddleware).Post("/login", authHandler.Login)
		} else {
			r.Post("/login", authHandler.Login)
		}
		r.Post("/logout", authHandler.Logout)    // session
		r.Get("/me", authHandler.GetCurrentUser) // session
	})

	// Work ledger (session-gated)
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", ledgerHandler.CreateTask)
		r.Get("/{id}", ledgerHandler.GetTask)
	})
	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", ledgerHandler.CreateExpense)
		r.Get("/{id}", ledgerHandler.GetExpense)
	})

	// Invoice lifecycle (session-gated)
	r.Post("/invoice.build", invoiceHandler.Build)
	r.Post("/invoice.apply_suggestions", invoiceHandler.ApplySuggestions)
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/{id}", invoiceHandler.Get)
		r.Get("/{id}/diff", invoiceHandler.Diff)
		r.Post("/{id}/preview", invoiceHandler.IssuePreview)
	})

	// Token-gated public endpoints. The server's session gate skips these
	// (see Unprotected); the handlers enforce the preview token instead.
	if publicMiddleware != nil {
		r.With(publicMiddleware).Get("/invoice.preview/{id}", invoiceHandler.Preview)
		r.With(publicMiddleware).Post("/invoice.suggest_change", invoiceHandler.SuggestChange)
	} else {
		r.Get("/invoice.preview/{id}", invoiceHandler.Preview)
		r.Post("/invoice.suggest_change", invoiceHandler.SuggestChange)
	}

	// Moderation (session-gated, admins only)
	r.Route("/admin/pending", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/{id}/approve", adminHandler.Approve)
		r.Post("/{id}/reject", adminHandler.Reject)
	})

	return &Service{router: r, conf: &c, log: log}, nil
}

func buildRatelimit(profile string, interceptorsCfg map[string]map[string]any, log *slog.Logger) (func(http.Handler) http.Handler, error) {
	if profile == "" {
		return nil, nil
	}
	profileConfig, err := interceptors.GetProfileConfig(interceptorsCfg, "ratelimit", profile)
	if err != nil {
		return nil, err
	}
	newInterceptor, ok := interceptors.Get("ratelimit")
	if !ok {
		return nil, errors.New("ratelimit interceptor not registered")
	}
	mw, err := newInterceptor(profileConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit interceptor: %w", err)
	}
	return mw, nil
}

// requireAdmin rejects session users without an admin role.
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
	return "api"
}

// Unprotected returns paths that don't require session authentication.
// The preview and suggestion endpoints are token-gated by their handlers.
func (s *Service) Unprotected() []string {
	return []string{"/healthz", "/auth/login", "/invoice.preview", "/invoice.suggest_change"}
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}
