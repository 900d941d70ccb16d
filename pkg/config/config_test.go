package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
logging:
  level: INFO
server:
  port: 9000
stores:
  - name: mem
    type: memory
shares:
  - name: export
    content_store: mem
    default_permission: read
`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default format text, got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected default shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Impersonation.IsEnabled() {
		t.Error("expected impersonation enabled by default")
	}
	if cfg.Impersonation.AcquireTimeout != 30*time.Second {
		t.Errorf("expected default acquire timeout, got %v", cfg.Impersonation.AcquireTimeout)
	}
	if len(cfg.Shares) != 1 || cfg.Shares[0].DefaultPermission != "read" {
		t.Errorf("unexpected shares: %+v", cfg.Shares)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if len(cfg.Stores) == 0 || len(cfg.Shares) == 0 {
		t.Error("expected default store and share")
	}
}

func TestLoadDurationStrings(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
server:
  port: 9000
  shutdown_timeout: 5s
impersonation:
  acquire_timeout: 250ms
stores:
  - name: mem
    type: memory
shares:
  - name: export
    content_store: mem
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected 5s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Impersonation.AcquireTimeout != 250*time.Millisecond {
		t.Errorf("expected 250ms acquire timeout, got %v", cfg.Impersonation.AcquireTimeout)
	}
}

func TestImpersonationExplicitlyDisabled(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
impersonation:
  enabled: false
stores:
  - name: mem
    type: memory
shares:
  - name: export
    content_store: mem
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Impersonation.IsEnabled() {
		t.Error("expected impersonation disabled")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DRIFTFS_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(writeConfigFile(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected env override DEBUG, got %q", cfg.Logging.Level)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Port = 9999
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", fi.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("expected port 9999 after reload, got %d", loaded.Server.Port)
	}
}

func TestMustLoadMissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
	if !strings.Contains(err.Error(), "driftfs init") {
		t.Errorf("expected init hint in error, got: %v", err)
	}
}
