package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftlab/driftfs/internal/gateway"
	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/config"
	"github.com/driftlab/driftfs/pkg/impersonate"
	"github.com/driftlab/driftfs/pkg/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DriftFS gateway",
	Long: `Start the DriftFS gateway with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/driftfs/config.yaml.

Examples:
  # Start with the default config
  driftfs start

  # Start with custom config file
  driftfs start --config /etc/driftfs/config.yaml

  # Start with environment variable overrides
  DRIFTFS_LOGGING_LEVEL=DEBUG driftfs start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("configuration loaded",
		"source", configSource(GetConfigFile()),
		"shares", len(cfg.Shares),
		"stores", len(cfg.Stores))

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("metrics enabled", "path", "/metrics")
	}

	reg, err := config.InitializeRegistry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize shares: %w", err)
	}
	defer func() {
		if err := reg.Close(context.Background()); err != nil {
			logger.Error("store shutdown error", logger.KeyError, err.Error())
		}
	}()

	var switcher *impersonate.Switcher
	if cfg.Impersonation.IsEnabled() {
		switcher = impersonate.NewSwitcher(
			impersonate.WithMetrics(metrics.NewImpersonationMetrics()),
		)
		logger.Info("impersonation enabled",
			"acquire_timeout", cfg.Impersonation.AcquireTimeout.String())
	} else {
		switcher = impersonate.NewSwitcher()
		logger.Info("impersonation disabled; operations run as the server identity")
	}

	srv := gateway.NewServer(cfg, reg, switcher)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	logger.Info("driftfs stopped")
	return nil
}

// initLogger initializes the structured logger from configuration.
func initLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func configSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "built-in defaults"
}
