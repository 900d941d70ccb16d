// Package config loads, validates, and writes the DriftFS configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DRIFTFS_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/driftlab/driftfs/pkg/identity"
)

// Config represents the DriftFS server configuration.
//
// It is static: stores, shares, users, and groups are read at startup and
// do not change while the server runs.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains the HTTP gateway settings.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Impersonation controls identity switching for OS-backed shares.
	Impersonation ImpersonationConfig `mapstructure:"impersonation" yaml:"impersonation"`

	// Stores declares the named content stores.
	Stores []StoreConfig `mapstructure:"stores" validate:"dive" yaml:"stores"`

	// Shares binds share names to content stores.
	Shares []ShareConfig `mapstructure:"shares" validate:"dive" yaml:"shares"`

	// Users is the static user database.
	Users []*identity.User `mapstructure:"users" yaml:"users,omitempty"`

	// Groups is the static group database.
	Groups []*identity.Group `mapstructure:"groups" yaml:"groups,omitempty"`

	// Guest configures anonymous access.
	Guest identity.GuestConfig `mapstructure:"guest" yaml:"guest"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig contains HTTP gateway settings.
type ServerConfig struct {
	// Host is the listen address. Empty means all interfaces.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the HTTP listen port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// ReadTimeout bounds how long reading a request may take.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds how long writing a response may take.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// MetricsConfig configures Prometheus metrics.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and the /metrics
	// endpoint are active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ImpersonationConfig controls filesystem identity switching.
type ImpersonationConfig struct {
	// Enabled controls whether operations on OS-backed shares run under
	// the authenticated user's Unix identity. Disabling it runs everything
	// under the server's own identity.
	// Default: true. A pointer distinguishes "absent" from an explicit false.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled,omitempty"`

	// AcquireTimeout bounds how long an operation waits for the
	// process-wide identity slot before failing.
	// Default: 30s.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
}

// IsEnabled reports whether identity switching is on. Absent means on.
func (c *ImpersonationConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// StoreConfig declares one named content store.
type StoreConfig struct {
	// Name is the store's registry name, referenced by shares.
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Type selects the backend: fs, memory, or s3.
	Type string `mapstructure:"type" validate:"required,oneof=fs memory s3" yaml:"type"`

	// Path is the root directory for fs stores.
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// S3 holds the object store settings for s3 stores.
	S3 S3StoreConfig `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3StoreConfig contains S3 connection settings.
type S3StoreConfig struct {
	// Endpoint overrides the AWS endpoint, for MinIO and other
	// S3-compatible services. Empty uses the AWS default.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// Region is the AWS region.
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Bucket is the bucket name. The bucket must already exist.
	Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`

	// KeyPrefix is an optional prefix for all object keys.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// AccessKeyID and SecretAccessKey are static credentials.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// ForcePathStyle uses path-style addressing, required by MinIO.
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// ShareConfig binds a share name to a content store.
type ShareConfig struct {
	// Name is the share name as it appears in request paths.
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// ContentStore names the store declared in Stores.
	ContentStore string `mapstructure:"content_store" validate:"required" yaml:"content_store"`

	// ReadOnly rejects all mutating operations on this share.
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only,omitempty"`

	// DefaultPermission applies when neither the user nor their groups
	// has an explicit permission for this share.
	// Valid values: none, read, read-write, admin. Default: none.
	DefaultPermission string `mapstructure:"default_permission" validate:"omitempty,oneof=none read read-write admin" yaml:"default_permission,omitempty"`

	// GuestAccess allows unauthenticated requests under the guest identity.
	GuestAccess bool `mapstructure:"guest_access" yaml:"guest_access,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to config file (empty string uses the default
//     location, $XDG_CONFIG_HOME/driftfs/config.yaml)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the file
// does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  driftfs init\n\n"+
				"Or specify a custom config file:\n"+
				"  driftfs <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  driftfs init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration to the given path in YAML format.
// The file is written with owner-only permissions because it may contain
// password hashes and S3 credentials.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variable support and config file search.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DRIFTFS_ prefix with underscores.
	// Example: DRIFTFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DRIFTFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the config file if it exists. A missing file is not
// an error; defaults apply instead.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s" or "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path. Uses
// XDG_CONFIG_HOME if set, otherwise ~/.config, with the current directory
// as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "driftfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "driftfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
