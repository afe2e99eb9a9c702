// Package main is the entrypoint for the workledger server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
	"github.com/workledger/workledger-go/internal/frameworks/service"
	"github.com/workledger/workledger-go/internal/platform/cache"
	"github.com/workledger/workledger-go/internal/platform/config"
	"github.com/workledger/workledger-go/internal/platform/deps"
	"github.com/workledger/workledger-go/internal/platform/http/realip"
	"github.com/workledger/workledger-go/internal/platform/server"
	"github.com/workledger/workledger-go/internal/store"

	// Register cache drivers
	_ "github.com/workledger/workledger-go/internal/platform/cache/loader"

	// Register store drivers
	_ "github.com/workledger/workledger-go/internal/store/memory"
	_ "github.com/workledger/workledger-go/internal/store/sqlite"

	// Register services
	_ "github.com/workledger/workledger-go/internal/services/admin"
	_ "github.com/workledger/workledger-go/internal/services/api"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	publicOrigin := flag.String("public-origin", "", "Public origin (overrides config)")
	externalBasePath := flag.String("external-base-path", "", "External base path (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory or sqlite (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the sqlite driver (overrides config)")
	adminUsername := flag.String("admin-username", "", "Bootstrap admin username (overrides config)")
	adminPassword := flag.String("admin-password", "", "Bootstrap admin password (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	moderation := flag.String("moderation", "", "Require suggestion approval before apply: true or false (overrides config)")
	previewTTL := flag.String("preview-ttl", "", "Preview token TTL in seconds (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:       listenAddr,
			PublicOrigin:     publicOrigin,
			ExternalBasePath: externalBasePath,
			TLSMode:          tlsMode,
			StoreDriver:      storeDriver,
			DataDir:          dataDir,
			AdminUsername:    adminUsername,
			AdminPassword:    adminPassword,
			LoggingLevel:     loggingLevel,
			Moderation:       moderation,
			PreviewTTL:       previewTTL,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create logger with configured level
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	// Create the persistence backend
	if cfg.Store.Driver == "sqlite" {
		if err := os.MkdirAll(cfg.Store.DataDir, 0700); err != nil {
			logger.Error("failed to create data directory", "path", cfg.Store.DataDir, "error", err)
			os.Exit(1)
		}
	}
	backend, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	if err := backend.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "driver", backend.Name(), "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	logger.Info("store initialized", "driver", backend.Name())

	userAuth := identity.NewUserAuth()

	// Bootstrap super admin user
	bootstrap := identity.NewBootstrap(backend.Users(), userAuth, logger)
	bootstrapUsername := cfg.Server.BootstrapAdmin.Username
	if bootstrapUsername == "" {
		bootstrapUsername = "admin"
	}
	// Determine if password was explicitly set (non-empty in config or via flag)
	explicitPasswordSet := cfg.Server.BootstrapAdmin.Password != ""
	if err := bootstrap.EnsureSuperAdmin(
		context.Background(),
		bootstrapUsername,
		cfg.Server.BootstrapAdmin.Password,
		explicitPasswordSet,
	); err != nil {
		logger.Error("failed to bootstrap super admin", "error", err)
		os.Exit(1)
	}

	// Create tax rate provider from config
	taxRates, err := invoice.NewStaticRates(cfg.Tax.DefaultRate, cfg.Tax.Rates, cfg.Tax.ClientOverrides)
	if err != nil {
		logger.Error("invalid tax configuration", "error", err)
		os.Exit(1)
	}

	// Create cache (defaults to in-memory if not configured)
	// Passes driver-specific config from [cache.drivers.<driver>] section
	cacheDriver := cfg.Cache.Driver
	if cacheDriver == "" {
		cacheDriver = "memory"
	}
	cacheInstance, err := cache.NewFromConfig(cacheDriver, cfg.Cache.Drivers)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}

	// Invoice engines share the backend repositories
	builder := invoice.NewBuilder(backend.Invoices(), backend.Tasks(), backend.Expenses(), taxRates, logger)
	applier := invoice.NewApplier(backend.Invoices(), backend.Suggestions(), taxRates, cfg.Suggestions.Moderation, logger)
	differ := invoice.NewDiffer(backend.Invoices())

	// Set shared dependencies before constructing services
	deps.SetDeps(&deps.Deps{
		PartyRepo:      backend.Users(),
		SessionRepo:    backend.Sessions(),
		UserAuth:       userAuth,
		TaskRepo:       backend.Tasks(),
		ExpenseRepo:    backend.Expenses(),
		InvoiceRepo:    backend.Invoices(),
		SuggestionRepo: backend.Suggestions(),
		PreviewTokens:  backend.PreviewTokens(),
		Policy:         suggestions.NewPolicy(),
		Builder:        builder,
		Applier:        applier,
		Differ:         differ,
		TaxRates:       taxRates,
		Config:         cfg,
		Cache:          cacheInstance,
		RealIP:         realip.NewTrustedProxies(cfg.Server.TrustedProxies),
	})

	// Construct core services from the registry
	apiFactory := service.Get("api")
	adminFactory := service.Get("admin")
	if apiFactory == nil || adminFactory == nil {
		logger.Error("core services not registered", "registered", service.RegisteredServices())
		os.Exit(1)
	}

	apiSvc, err := apiFactory(cfg.BuildServiceConfig("api"), logger)
	if err != nil {
		logger.Error("failed to create api service", "error", err)
		os.Exit(1)
	}
	adminSvc, err := adminFactory(cfg.BuildServiceConfig("admin"), logger)
	if err != nil {
		logger.Error("failed to create admin service", "error", err)
		os.Exit(1)
	}

	// Create and start server
	srv, err := server.New(cfg, logger, apiSvc, adminSvc)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
