package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/workledger/workledger-go/internal/platform/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in      string
		want    config.Mode
		wantErr bool
	}{
		{"prod", config.ModeProd, false},
		{"dev", config.ModeDev, false},
		{"", config.ModeProd, false},
		{" DEV ", config.ModeDev, false},
		{"staging", "", true},
	}
	for _, tc := range cases {
		got, err := config.ParseMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoad_ModePresets(t *testing.T) {
	prod, err := config.Load(config.LoaderOptions{ModeFlag: "prod"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if prod.Store.Driver != "sqlite" {
		t.Errorf("prod should default to sqlite, got %q", prod.Store.Driver)
	}
	if prod.Logging.Level != "info" {
		t.Errorf("prod should default to info, got %q", prod.Logging.Level)
	}
	if prod.Preview.TTLSeconds != 3600 {
		t.Errorf("default preview TTL should be 3600, got %d", prod.Preview.TTLSeconds)
	}

	dev, err := config.Load(config.LoaderOptions{ModeFlag: "dev"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if dev.Store.Driver != "memory" {
		t.Errorf("dev should default to memory, got %q", dev.Store.Driver)
	}
	if dev.Logging.Level != "debug" {
		t.Errorf("dev should default to debug, got %q", dev.Logging.Level)
	}
}

func TestLoad_FileLayersOverPreset(t *testing.T) {
	path := writeConfig(t, `
mode = "dev"
listen_addr = ":9090"
public_origin = "https://ledger.example.com"

[preview]
ttl_seconds = 600

[suggestions]
moderation = true

[tax]
default_rate = "0.17"

[tax.rates]
ILS = "0.17"
`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Mode != "dev" {
		t.Errorf("expected dev mode from file, got %q", cfg.Mode)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.ListenAddr)
	}
	if cfg.Preview.TTLSeconds != 600 {
		t.Errorf("expected TTL 600, got %d", cfg.Preview.TTLSeconds)
	}
	if !cfg.Suggestions.Moderation {
		t.Error("moderation should be on")
	}
	if cfg.Tax.Rates["ILS"] != "0.17" {
		t.Errorf("tax rates not loaded: %v", cfg.Tax.Rates)
	}
	// Dev preset still applies to keys the file does not set.
	if cfg.Store.Driver != "memory" {
		t.Errorf("dev preset lost: store driver %q", cfg.Store.Driver)
	}
}

func TestLoad_FlagsWin(t *testing.T) {
	path := writeConfig(t, `
mode = "dev"
listen_addr = ":9090"
`)

	listen := ":7070"
	driver := "sqlite"
	dataDir := "/tmp/wl-test"
	moderation := "true"
	ttl := "120"
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: path,
		ModeFlag:   "prod",
		FlagOverrides: config.FlagOverrides{
			ListenAddr:  &listen,
			StoreDriver: &driver,
			DataDir:     &dataDir,
			Moderation:  &moderation,
			PreviewTTL:  &ttl,
		},
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Mode != "prod" {
		t.Errorf("mode flag must win over file, got %q", cfg.Mode)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("listen flag must win over file, got %q", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DataDir != "/tmp/wl-test" {
		t.Errorf("store flags not applied: %+v", cfg.Store)
	}
	if !cfg.Suggestions.Moderation {
		t.Error("moderation flag not applied")
	}
	if cfg.Preview.TTLSeconds != 120 {
		t.Errorf("preview TTL flag not applied, got %d", cfg.Preview.TTLSeconds)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		toml string
	}{
		{"bad tls mode", "[tls]\nmode = \"mutual\"\n"},
		{"bad store driver", "[store]\ndriver = \"postgres\"\n"},
		{"bad logging level", "[logging]\nlevel = \"trace\"\n"},
		{"non-positive ttl", "[preview]\nttl_seconds = 0\n"},
		{"base path without slash", "external_base_path = \"workledger\"\n"},
		{"sqlite without data dir", "[store]\ndriver = \"sqlite\"\ndata_dir = \"\"\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.toml)
			if _, err := config.Load(config.LoaderOptions{ConfigPath: path}); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(config.LoaderOptions{ConfigPath: "/nonexistent/config.toml"})
	if err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestLoad_BadFlagValues(t *testing.T) {
	moderation := "maybe"
	if _, err := config.Load(config.LoaderOptions{
		FlagOverrides: config.FlagOverrides{Moderation: &moderation},
	}); err == nil {
		t.Error("expected error for non-boolean moderation flag")
	}

	ttl := "-5"
	if _, err := config.Load(config.LoaderOptions{
		FlagOverrides: config.FlagOverrides{PreviewTTL: &ttl},
	}); err == nil {
		t.Error("expected error for negative preview TTL flag")
	}
}

func TestBuildServiceConfig(t *testing.T) {
	path := writeConfig(t, `
[http.services.api]
enabled = true

[http.services.api.ratelimit]
profile = "default"
`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	svcCfg := cfg.BuildServiceConfig("api")
	if svcCfg == nil {
		t.Fatal("expected api service config")
	}
	if svcCfg["enabled"] != true {
		t.Errorf("enabled not decoded: %v", svcCfg)
	}

	if cfg.BuildServiceConfig("unknown") != nil {
		t.Error("unknown service must return nil")
	}

	// The returned map is a copy.
	svcCfg["enabled"] = false
	if fresh := cfg.BuildServiceConfig("api"); fresh["enabled"] != true {
		t.Error("BuildServiceConfig must return a copy")
	}
}

func TestPublicScheme(t *testing.T) {
	cases := []struct {
		origin string
		want   string
	}{
		{"https://ledger.example.com", "https"},
		{"http://localhost:8080", "http"},
		{"", "https"},
		{"not a url", "https"},
	}
	for _, tc := range cases {
		cfg := &config.Config{PublicOrigin: tc.origin}
		if got := cfg.PublicScheme(); got != tc.want {
			t.Errorf("PublicScheme(%q) = %q, want %q", tc.origin, got, tc.want)
		}
	}
}

func TestRedacted(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{
		ModeFlag: "dev",
		FlagOverrides: config.FlagOverrides{
			AdminPassword: strPtr("hunter2"),
		},
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	out := cfg.Redacted()
	if strings.Contains(out, "hunter2") {
		t.Error("Redacted output must not contain the admin password")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("Redacted output should mark the redacted field")
	}
}

func strPtr(s string) *string { return &s }
