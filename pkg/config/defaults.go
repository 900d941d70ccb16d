package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GetDefaultConfig returns a complete configuration with all defaults
// applied: a local filesystem store under the user's data directory exposed
// as a read-write "export" share, no users, and guest access disabled.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Stores: []StoreConfig{
			{
				Name: "local",
				Type: "fs",
				Path: getDefaultDataDir(),
			},
		},
		Shares: []ShareConfig{
			{
				Name:              "export",
				ContentStore:      "local",
				DefaultPermission: "read-write",
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyImpersonationDefaults(&cfg.Impersonation)
	applyShareDefaults(cfg.Shares)
}

// applyLoggingDefaults sets logging defaults and normalizes the level.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets HTTP gateway defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyImpersonationDefaults sets identity switching defaults. Enabled stays
// nil when absent; IsEnabled treats that as on.
func applyImpersonationDefaults(cfg *ImpersonationConfig) {
	if cfg.AcquireTimeout == 0 {
		cfg.AcquireTimeout = 30 * time.Second
	}
}

// applyShareDefaults fills per-share defaults.
func applyShareDefaults(shares []ShareConfig) {
	for i := range shares {
		if shares[i].DefaultPermission == "" {
			shares[i].DefaultPermission = "none"
		}
	}
}

// getDefaultDataDir returns the default content directory. Uses
// XDG_DATA_HOME if set, otherwise ~/.local/share, with the current
// directory as a last resort.
func getDefaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "driftfs", "data")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "driftfs-data")
	}
	return filepath.Join(home, ".local", "share", "driftfs", "data")
}
