package config

import (
	"context"
	"testing"

	"github.com/driftlab/driftfs/pkg/identity"
	"github.com/driftlab/driftfs/pkg/store/content"
)

func TestInitializeRegistry(t *testing.T) {
	cfg := &Config{
		Stores: []StoreConfig{
			{Name: "mem", Type: "memory"},
			{Name: "disk", Type: "fs", Path: t.TempDir()},
		},
		Shares: []ShareConfig{
			{Name: "scratch", ContentStore: "mem", DefaultPermission: "read-write"},
			{Name: "export", ContentStore: "disk", DefaultPermission: "read"},
		},
		Users: []*identity.User{
			{Username: "alice", Enabled: true},
		},
	}
	ApplyDefaults(cfg)

	reg, err := InitializeRegistry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}

	memStore, err := reg.GetContentStoreForShare("scratch")
	if err != nil {
		t.Fatalf("GetContentStoreForShare failed: %v", err)
	}
	if content.EnforcesOSPermissions(memStore) {
		t.Error("memory-backed share should not enforce OS permissions")
	}

	diskStore, err := reg.GetContentStoreForShare("export")
	if err != nil {
		t.Fatalf("GetContentStoreForShare failed: %v", err)
	}
	if !content.EnforcesOSPermissions(diskStore) {
		t.Error("fs-backed share should enforce OS permissions")
	}

	if reg.GetUserStore() == nil {
		t.Error("expected user store to be registered")
	}
	if _, err := reg.GetUserStore().GetUser("alice"); err != nil {
		t.Errorf("expected alice in user store: %v", err)
	}
}

func TestInitializeRegistryRequiresStores(t *testing.T) {
	cfg := &Config{Shares: []ShareConfig{{Name: "x", ContentStore: "y"}}}
	if _, err := InitializeRegistry(context.Background(), cfg); err == nil {
		t.Error("expected error with no stores")
	}

	cfg = &Config{Stores: []StoreConfig{{Name: "mem", Type: "memory"}}}
	if _, err := InitializeRegistry(context.Background(), cfg); err == nil {
		t.Error("expected error with no shares")
	}
}

func TestInitializeRegistryUnknownStoreType(t *testing.T) {
	cfg := &Config{
		Stores: []StoreConfig{{Name: "weird", Type: "tape"}},
		Shares: []ShareConfig{{Name: "x", ContentStore: "weird"}},
	}
	if _, err := InitializeRegistry(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown store type")
	}
}
