package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr       *string
	PublicOrigin     *string
	ExternalBasePath *string
	TLSMode          *string
	StoreDriver      *string
	DataDir          *string
	AdminUsername    *string
	AdminPassword    *string
	LoggingLevel     *string
	Moderation       *string // "true", "false", or "" (unset)
	PreviewTTL       *string // seconds, or "" (unset)
}

// defaults returns the baseline configuration for a mode.
// Precedence: mode preset -> TOML file -> CLI flags.
func defaults(mode Mode) *Config {
	cfg := &Config{
		Mode:         string(mode),
		PublicOrigin: "http://localhost:8080",
		ListenAddr:   ":8080",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
			BootstrapAdmin: BootstrapAdminConfig{Username: "admin"},
		},
		TLS:         TLSConfig{Mode: "off"},
		Store:       StoreConfig{Driver: "sqlite", DataDir: ".workledger"},
		Cache:       CacheConfig{Driver: "memory"},
		Logging:     LoggingConfig{Level: "info"},
		Preview:     PreviewConfig{TTLSeconds: 3600},
		Suggestions: SuggestionsConfig{Moderation: false},
		Tax:         TaxConfig{DefaultRate: "0"},
	}

	if mode == ModeDev {
		cfg.Logging.Level = "debug"
		cfg.Store.Driver = "memory"
	}

	return cfg
}

// Load loads the configuration with precedence: mode preset -> TOML file -> CLI flags.
func Load(opts LoaderOptions) (*Config, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	// Determine the mode first: flag wins, then file, then default.
	fileMode := ""
	if opts.ConfigPath != "" {
		var probe struct {
			Mode string `toml:"mode"`
		}
		if _, err := toml.DecodeFile(opts.ConfigPath, &probe); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		fileMode = probe.Mode
	}

	modeStr := fileMode
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := defaults(mode)

	// Layer the TOML file on top of the preset.
	if opts.ConfigPath != "" {
		md, err := toml.DecodeFile(opts.ConfigPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		for _, key := range md.Undecoded() {
			log.Warn("unknown config key", "key", key.String())
		}
		cfg.Mode = string(mode)
	}

	// Layer CLI flags on top of the file.
	if err := applyFlags(cfg, opts.FlagOverrides); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyFlags(cfg *Config, f FlagOverrides) error {
	if s := strVal(f.ListenAddr); s != "" {
		cfg.ListenAddr = s
	}
	if s := strVal(f.PublicOrigin); s != "" {
		cfg.PublicOrigin = s
	}
	if s := strVal(f.ExternalBasePath); s != "" {
		cfg.ExternalBasePath = s
	}
	if s := strVal(f.TLSMode); s != "" {
		cfg.TLS.Mode = s
	}
	if s := strVal(f.StoreDriver); s != "" {
		cfg.Store.Driver = s
	}
	if s := strVal(f.DataDir); s != "" {
		cfg.Store.DataDir = s
	}
	if s := strVal(f.AdminUsername); s != "" {
		cfg.Server.BootstrapAdmin.Username = s
	}
	if s := strVal(f.AdminPassword); s != "" {
		cfg.Server.BootstrapAdmin.Password = s
	}
	if s := strVal(f.LoggingLevel); s != "" {
		cfg.Logging.Level = s
	}
	if s := strVal(f.Moderation); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid --moderation value %q: %w", s, err)
		}
		cfg.Suggestions.Moderation = b
	}
	if s := strVal(f.PreviewTTL); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid --preview-ttl value %q", s)
		}
		cfg.Preview.TTLSeconds = n
	}
	return nil
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func validate(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off", "static", "selfsigned", "acme":
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	switch cfg.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, sqlite", cfg.Store.Driver)
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", cfg.Logging.Level)
	}

	if cfg.Store.Driver == "sqlite" && cfg.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is required for the sqlite driver")
	}

	if cfg.Preview.TTLSeconds <= 0 {
		return fmt.Errorf("preview.ttl_seconds must be positive, got %d", cfg.Preview.TTLSeconds)
	}

	if cfg.ExternalBasePath != "" && !strings.HasPrefix(cfg.ExternalBasePath, "/") {
		return fmt.Errorf("external_base_path must start with /, got %q", cfg.ExternalBasePath)
	}

	if _, err := os.Stat(cfg.TLS.CertFile); cfg.TLS.Mode == "static" && cfg.TLS.CertFile != "" && err != nil {
		return fmt.Errorf("tls.cert_file %q: %w", cfg.TLS.CertFile, err)
	}

	return nil
}
