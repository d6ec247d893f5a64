package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/menhera-org/etherip-rs/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "etheripd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
log_level = "info"

[links.tap0]
remote = "10.0.0.2"
ip_version = "V4"

[links.tap1]
remote = "peer.example"
ip_version = "V6"
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Level() != config.LogLevelInfo {
		t.Fatalf("Level() = %v, want LogLevelInfo", cfg.Level())
	}
	if len(cfg.Links) != 2 {
		t.Fatalf("len(Links) = %d, want 2", len(cfg.Links))
	}
	if cfg.Links["tap0"].Remote != "10.0.0.2" {
		t.Fatalf("Links[tap0].Remote = %q, want 10.0.0.2", cfg.Links["tap0"].Remote)
	}
}

func TestLoadDefaultsLogLevelToWarn(t *testing.T) {
	path := writeConfig(t, `
[links.tap0]
remote = "10.0.0.2"
ip_version = "V4"
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Level() != config.DefaultLogLevel {
		t.Fatalf("Level() = %v, want DefaultLogLevel (warn)", cfg.Level())
	}
}

func TestLoadRejectsUnknownTopLevelField(t *testing.T) {
	path := writeConfig(t, `
log_level = "warn"
bogus_field = true

[links.tap0]
remote = "10.0.0.2"
ip_version = "V4"
`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("Load: expected an error for an unknown top-level field")
	}
}

func TestLoadRejectsUnknownLinkField(t *testing.T) {
	path := writeConfig(t, `
[links.tap0]
remote = "10.0.0.2"
ip_version = "V4"
mtu = 1500
`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("Load: expected an error for an unknown link field")
	}
}

func TestLoadRejectsInvalidIPVersion(t *testing.T) {
	path := writeConfig(t, `
[links.tap0]
remote = "10.0.0.2"
ip_version = "V5"
`)

	if _, err := config.Load(path); !errors.Is(err, config.ErrUnknownIPVersion) {
		t.Fatalf("Load error = %v, want ErrUnknownIPVersion", err)
	}
}

func TestLoadRejectsInvalidLinkName(t *testing.T) {
	path := writeConfig(t, `
[links."bad/name"]
remote = "10.0.0.2"
ip_version = "V4"
`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("Load: expected an error for an invalid link name")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("Load: expected an error for a missing file")
	}
}

func TestNewRemoteAddrStatic(t *testing.T) {
	ra, err := config.NewRemoteAddr(config.LinkConfig{Remote: "203.0.113.9", IPVersion: "V4"})
	if err != nil {
		t.Fatalf("NewRemoteAddr: %v", err)
	}

	addr, err := ra.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if addr.String() != "203.0.113.9" {
		t.Fatalf("Resolve() = %v, want 203.0.113.9", addr)
	}
}

func TestNewRemoteAddrDynamicResolvesV4(t *testing.T) {
	ra, err := config.NewRemoteAddr(config.LinkConfig{Remote: "localhost", IPVersion: "V4"})
	if err != nil {
		t.Fatalf("NewRemoteAddr: %v", err)
	}

	first, err := ra.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve (first): %v", err)
	}
	if !first.Is4() {
		t.Fatalf("Resolve() = %v, want an IPv4 address", first)
	}
}
