package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/driftlab/driftfs/pkg/identity"
)

var validate = validator.New()

// Validate checks the configuration for structural and referential errors.
//
// Structural checks (field formats, ranges, enums) come from the validate
// struct tags. Referential checks ensure names are unique and every
// reference resolves: shares to stores, users to groups.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	storeNames := make(map[string]bool, len(cfg.Stores))
	for _, store := range cfg.Stores {
		if storeNames[store.Name] {
			return fmt.Errorf("duplicate store name %q", store.Name)
		}
		storeNames[store.Name] = true

		switch store.Type {
		case "fs":
			if store.Path == "" {
				return fmt.Errorf("store %q: fs stores require a path", store.Name)
			}
		case "s3":
			if store.S3.Bucket == "" {
				return fmt.Errorf("store %q: s3 stores require a bucket", store.Name)
			}
			if store.S3.Region == "" && store.S3.Endpoint == "" {
				return fmt.Errorf("store %q: s3 stores require a region or endpoint", store.Name)
			}
		}
	}

	shareNames := make(map[string]bool, len(cfg.Shares))
	for _, share := range cfg.Shares {
		if shareNames[share.Name] {
			return fmt.Errorf("duplicate share name %q", share.Name)
		}
		shareNames[share.Name] = true

		if !storeNames[share.ContentStore] {
			return fmt.Errorf("share %q references unknown store %q",
				share.Name, share.ContentStore)
		}
		if share.GuestAccess && !cfg.Guest.Enabled {
			return fmt.Errorf("share %q allows guest access but guest is not enabled",
				share.Name)
		}
	}

	groupNames := make(map[string]bool, len(cfg.Groups))
	for _, group := range cfg.Groups {
		if err := group.Validate(); err != nil {
			return fmt.Errorf("group %q: %w", group.Name, err)
		}
		if groupNames[group.Name] {
			return fmt.Errorf("duplicate group name %q", group.Name)
		}
		groupNames[group.Name] = true
	}

	userNames := make(map[string]bool, len(cfg.Users))
	for _, user := range cfg.Users {
		if err := user.Validate(); err != nil {
			return fmt.Errorf("user %q: %w", user.Username, err)
		}
		if userNames[user.Username] {
			return fmt.Errorf("duplicate username %q", user.Username)
		}
		userNames[user.Username] = true

		for _, groupName := range user.Groups {
			if !groupNames[groupName] {
				return fmt.Errorf("user %q references unknown group %q",
					user.Username, groupName)
			}
		}
	}

	for shareName, perm := range cfg.Guest.SharePermissions {
		if !perm.IsValid() {
			return fmt.Errorf("guest: invalid permission %q for share %q", perm, shareName)
		}
		if perm != identity.PermissionNone && !shareNames[shareName] {
			return fmt.Errorf("guest references unknown share %q", shareName)
		}
	}

	return nil
}
