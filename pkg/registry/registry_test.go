package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/driftlab/driftfs/pkg/identity"
	"github.com/driftlab/driftfs/pkg/store/content/memory"
)

func TestRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()

	if err := reg.RegisterContentStore("mem", memory.NewMemoryContentStore()); err != nil {
		t.Fatalf("RegisterContentStore failed: %v", err)
	}
	if err := reg.RegisterContentStore("mem", memory.NewMemoryContentStore()); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	if err := reg.AddShare(&ShareConfig{
		Name:              "export",
		ContentStore:      "mem",
		DefaultPermission: identity.PermissionRead,
	}); err != nil {
		t.Fatalf("AddShare failed: %v", err)
	}

	share, err := reg.GetShare("export")
	if err != nil {
		t.Fatalf("GetShare failed: %v", err)
	}
	if share.DefaultPermission != identity.PermissionRead {
		t.Errorf("unexpected default permission %q", share.DefaultPermission)
	}

	if _, err := reg.GetContentStoreForShare("export"); err != nil {
		t.Errorf("GetContentStoreForShare failed: %v", err)
	}
}

func TestMissingReferences(t *testing.T) {
	reg := NewRegistry()

	if err := reg.AddShare(&ShareConfig{Name: "orphan", ContentStore: "nope"}); !errors.Is(err, ErrStoreNotFound) {
		t.Errorf("expected ErrStoreNotFound, got %v", err)
	}
	if _, err := reg.GetShare("nope"); !errors.Is(err, ErrShareNotFound) {
		t.Errorf("expected ErrShareNotFound, got %v", err)
	}
	if _, err := reg.GetContentStore("nope"); !errors.Is(err, ErrStoreNotFound) {
		t.Errorf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestDuplicateShare(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterContentStore("mem", memory.NewMemoryContentStore())

	if err := reg.AddShare(&ShareConfig{Name: "export", ContentStore: "mem"}); err != nil {
		t.Fatalf("AddShare failed: %v", err)
	}
	if err := reg.AddShare(&ShareConfig{Name: "export", ContentStore: "mem"}); err == nil {
		t.Error("expected duplicate share to fail")
	}
}

func TestListSharesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterContentStore("mem", memory.NewMemoryContentStore())

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.AddShare(&ShareConfig{Name: name, ContentStore: "mem"}); err != nil {
			t.Fatalf("AddShare(%s) failed: %v", name, err)
		}
	}

	shares := reg.ListShares()
	if len(shares) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(shares))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if shares[i].Name != want {
			t.Errorf("share %d: expected %s, got %s", i, want, shares[i].Name)
		}
	}
}

func TestUserStore(t *testing.T) {
	reg := NewRegistry()
	if reg.GetUserStore() != nil {
		t.Error("expected nil user store before SetUserStore")
	}

	store, err := identity.NewConfigUserStore(nil, nil, nil)
	if err != nil {
		t.Fatalf("NewConfigUserStore failed: %v", err)
	}
	reg.SetUserStore(store)
	if reg.GetUserStore() == nil {
		t.Error("expected user store after SetUserStore")
	}
}

func TestCloseAll(t *testing.T) {
	reg := NewRegistry()
	mem := memory.NewMemoryContentStore()
	reg.RegisterContentStore("mem", mem)

	if err := reg.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
