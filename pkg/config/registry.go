package config

import (
	"context"
	"fmt"

	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/identity"
	"github.com/driftlab/driftfs/pkg/registry"
	"github.com/driftlab/driftfs/pkg/store/content"
	fsstore "github.com/driftlab/driftfs/pkg/store/content/fs"
	memorystore "github.com/driftlab/driftfs/pkg/store/content/memory"
	s3store "github.com/driftlab/driftfs/pkg/store/content/s3"
)

// InitializeRegistry creates a fully configured Registry from the
// configuration: content stores first, then the shares referencing them,
// then the user store.
//
// The configuration should already have passed Validate; this function
// still fails cleanly on references it cannot resolve.
func InitializeRegistry(ctx context.Context, cfg *Config) (*registry.Registry, error) {
	logger.Debug("initializing registry from configuration")

	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if len(cfg.Stores) == 0 {
		return nil, fmt.Errorf("no content stores configured: at least one store is required")
	}
	if len(cfg.Shares) == 0 {
		return nil, fmt.Errorf("no shares configured: at least one share is required")
	}

	reg := registry.NewRegistry()

	for _, storeCfg := range cfg.Stores {
		store, err := createContentStore(ctx, storeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create content store %q: %w", storeCfg.Name, err)
		}
		if err := reg.RegisterContentStore(storeCfg.Name, store); err != nil {
			return nil, fmt.Errorf("failed to register content store %q: %w", storeCfg.Name, err)
		}
	}
	logger.Info("registered content stores", "count", len(cfg.Stores))

	for _, shareCfg := range cfg.Shares {
		if err := reg.AddShare(&registry.ShareConfig{
			Name:              shareCfg.Name,
			ContentStore:      shareCfg.ContentStore,
			ReadOnly:          shareCfg.ReadOnly,
			DefaultPermission: identity.ParseSharePermission(shareCfg.DefaultPermission),
			GuestAccess:       shareCfg.GuestAccess,
		}); err != nil {
			return nil, fmt.Errorf("failed to add share %q: %w", shareCfg.Name, err)
		}
	}
	logger.Info("registered shares", "count", len(cfg.Shares))

	if len(cfg.Users) > 0 || len(cfg.Groups) > 0 || cfg.Guest.Enabled {
		userStore, err := identity.NewConfigUserStore(cfg.Users, cfg.Groups, &cfg.Guest)
		if err != nil {
			return nil, fmt.Errorf("failed to create user store: %w", err)
		}
		reg.SetUserStore(userStore)
		logger.Info("registered user store",
			"users", len(cfg.Users),
			"groups", len(cfg.Groups),
			"guest_enabled", cfg.Guest.Enabled)
	}

	return reg, nil
}

// createContentStore builds one content store from its configuration.
func createContentStore(ctx context.Context, cfg StoreConfig) (content.ContentStore, error) {
	logger.Debug("creating content store",
		logger.KeyStoreName, cfg.Name,
		logger.KeyStoreType, cfg.Type)

	switch cfg.Type {
	case "fs":
		return fsstore.NewFSContentStore(cfg.Path)

	case "memory":
		return memorystore.NewMemoryContentStore(), nil

	case "s3":
		client, err := s3store.NewS3ClientFromConfig(ctx,
			cfg.S3.Endpoint,
			cfg.S3.Region,
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			cfg.S3.ForcePathStyle,
		)
		if err != nil {
			return nil, err
		}
		return s3store.NewS3ContentStore(ctx, s3store.S3ContentStoreConfig{
			Client:    client,
			Bucket:    cfg.S3.Bucket,
			KeyPrefix: cfg.S3.KeyPrefix,
		})

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
