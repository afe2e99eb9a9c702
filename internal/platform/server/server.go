// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/workledger/workledger-go/internal/frameworks/service"
	"github.com/workledger/workledger-go/internal/platform/config"
	"github.com/workledger/workledger-go/internal/platform/deps"
	platformtls "github.com/workledger/workledger-go/internal/platform/http/tls"
)

var ErrMissingSharedDeps = errors.New("shared deps not initialized: call deps.SetDeps() before server.New()")

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	apiSvc     service.Service // JSON API service for /api/* endpoints
	adminSvc   service.Service // admin fragment service for /admin/* endpoints

	// acmeChallengeServer serves HTTP-01 challenges on :80 in acme mode.
	acmeChallengeServer *http.Server

	// mountedServices tracks services for lifecycle management.
	// Stored in mount order; closed in reverse order during shutdown.
	mountedServices []service.Service
}

// New creates a new Server with the given configuration.
// All shared dependencies are obtained from deps.GetDeps().
func New(cfg *config.Config, logger *slog.Logger, apiSvc, adminSvc service.Service) (*Server, error) {
	if deps.GetDeps() == nil {
		return nil, ErrMissingSharedDeps
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		apiSvc:   apiSvc,
		adminSvc: adminSvc,
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"public_origin", s.cfg.PublicOrigin,
		"external_base_path", s.cfg.ExternalBasePath,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "off":
		return s.httpServer.ListenAndServe()

	case "static", "selfsigned":
		manager := platformtls.NewManager(&s.cfg.TLS, s.logger)
		tlsConfig, err := manager.GetTLSConfig(extractHostname(s.cfg.PublicOrigin))
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
		// Certs live in TLSConfig.Certificates; empty file args use them.
		return s.httpServer.ListenAndServeTLS("", "")

	case "acme":
		return s.startACME(ctx)

	default:
		return fmt.Errorf("%w: %s", platformtls.ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// startACME obtains a certificate via lego and serves TLS. The HTTP-01
// challenge handler gets its own listener on :80, which the ACME server
// requires.
func (s *Server) startACME(ctx context.Context) error {
	acme := platformtls.NewACMEManager(&s.cfg.TLS.ACME, s.logger)

	s.acmeChallengeServer = &http.Server{
		Addr:    ":80",
		Handler: acme.ChallengeHandler(),
	}
	go func() {
		if err := s.acmeChallengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ACME challenge server failed", "error", err)
		}
	}()

	if err := acme.Init(ctx); err != nil {
		return fmt.Errorf("ACME initialization failed: %w", err)
	}

	s.httpServer.TLSConfig = acme.GetTLSConfig()
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server and all mounted services.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	httpErr := s.httpServer.Shutdown(ctx)

	if s.acmeChallengeServer != nil {
		if err := s.acmeChallengeServer.Shutdown(ctx); err != nil {
			s.logger.Warn("ACME challenge server shutdown error", "error", err)
		}
	}

	// Close services in reverse mount order (last mounted = first closed).
	for i := len(s.mountedServices) - 1; i >= 0; i-- {
		svc := s.mountedServices[i]
		prefix := svc.Prefix()
		if prefix == "" {
			prefix = "(root)"
		}
		if err := svc.Close(); err != nil {
			s.logger.Warn("service close error", "service", prefix, "error", err)
		} else {
			s.logger.Debug("service closed", "service", prefix)
		}
	}

	return httpErr
}

// extractHostname extracts just the hostname from the public origin URL,
// for TLS certificate generation.
func extractHostname(publicOrigin string) string {
	host := publicOrigin
	if idx := len("https://"); len(host) > idx && host[:idx] == "https://" {
		host = host[idx:]
	} else if idx := len("http://"); len(host) > idx && host[:idx] == "http://" {
		host = host[idx:]
	}
	if len(host) > 0 && host[len(host)-1] == '/' {
		host = host[:len(host)-1]
	}
	// Strip port if present (IPv6 literals keep their brackets)
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
		if host[i] == ']' {
			break
		}
	}
	return host
}
