// Package registry manages the server's named resources: content stores,
// the shares that reference them, and the user store used for
// authentication. It provides thread-safe registration and lookup.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/identity"
	"github.com/driftlab/driftfs/pkg/store/content"
)

// Common registry errors.
var (
	ErrShareNotFound = errors.New("share not found")
	ErrStoreNotFound = errors.New("content store not found")
)

// Registry holds the server's content stores and shares.
type Registry struct {
	mu        sync.RWMutex
	content   map[string]content.ContentStore
	shares    map[string]*Share
	userStore identity.UserStore
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		content: make(map[string]content.ContentStore),
		shares:  make(map[string]*Share),
	}
}

// RegisterContentStore adds a named content store.
// Returns an error if a store with the same name already exists.
func (r *Registry) RegisterContentStore(name string, store content.ContentStore) error {
	if store == nil {
		return fmt.Errorf("cannot register nil content store")
	}
	if name == "" {
		return fmt.Errorf("cannot register content store with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.content[name]; exists {
		return fmt.Errorf("content store %q already registered", name)
	}
	r.content[name] = store

	logger.Debug("content store registered", logger.KeyStoreName, name)
	return nil
}

// GetContentStore returns a registered content store by name.
func (r *Registry) GetContentStore(name string) (content.ContentStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.content[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStoreNotFound, name)
	}
	return store, nil
}

// AddShare creates a share from the given configuration. The referenced
// content store must already be registered.
func (r *Registry) AddShare(cfg *ShareConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("cannot add share with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shares[cfg.Name]; exists {
		return fmt.Errorf("share %q already exists", cfg.Name)
	}
	if _, ok := r.content[cfg.ContentStore]; !ok {
		return fmt.Errorf("share %q: %w: %q",
			cfg.Name, ErrStoreNotFound, cfg.ContentStore)
	}

	perm := cfg.DefaultPermission
	if perm == "" {
		perm = identity.PermissionNone
	}

	r.shares[cfg.Name] = &Share{
		Name:              cfg.Name,
		ContentStore:      cfg.ContentStore,
		ReadOnly:          cfg.ReadOnly,
		DefaultPermission: perm,
		GuestAccess:       cfg.GuestAccess,
	}

	logger.Info("share added",
		logger.KeyShare, cfg.Name,
		logger.KeyStoreName, cfg.ContentStore)
	return nil
}

// GetShare returns a share by name.
func (r *Registry) GetShare(name string) (*Share, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	share, ok := r.shares[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrShareNotFound, name)
	}
	return share, nil
}

// ListShares returns all shares sorted by name.
func (r *Registry) ListShares() []*Share {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shares := make([]*Share, 0, len(r.shares))
	for _, s := range r.shares {
		shares = append(shares, s)
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].Name < shares[j].Name })
	return shares
}

// GetContentStoreForShare resolves a share name to its backing store.
func (r *Registry) GetContentStoreForShare(shareName string) (content.ContentStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	share, ok := r.shares[shareName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrShareNotFound, shareName)
	}
	store, ok := r.content[share.ContentStore]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStoreNotFound, share.ContentStore)
	}
	return store, nil
}

// SetUserStore sets the user store used for authentication.
func (r *Registry) SetUserStore(store identity.UserStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userStore = store
}

// GetUserStore returns the configured user store, or nil if none is set.
func (r *Registry) GetUserStore() identity.UserStore {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userStore
}

// Close closes all registered content stores, logging failures and
// continuing so one bad store cannot block shutdown of the rest.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, store := range r.content {
		if err := store.Close(ctx); err != nil {
			logger.Warn("failed to close content store",
				logger.KeyStoreName, name,
				logger.KeyError, err.Error())
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close store %q: %w", name, err)
			}
		}
	}
	return firstErr
}
