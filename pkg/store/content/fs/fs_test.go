package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/driftlab/driftfs/pkg/store/content"
)

func newTestStore(t *testing.T) *FSContentStore {
	t.Helper()
	store, err := NewFSContentStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSContentStore failed: %v", err)
	}
	return store
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.WriteContent(ctx, "docs/report.txt", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("WriteContent failed: %v", err)
	}
	if n != 11 {
		t.Errorf("expected 11 bytes written, got %d", n)
	}

	r, err := store.ReadContent(ctx, "docs/report.txt")
	if err != nil {
		t.Fatalf("ReadContent failed: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("expected 'hello world', got %q", data)
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.WriteContent(ctx, "file.txt", strings.NewReader("first")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if _, err := store.WriteContent(ctx, "file.txt", strings.NewReader("second")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	info, err := store.StatContent(ctx, "file.txt")
	if err != nil {
		t.Fatalf("StatContent failed: %v", err)
	}
	if info.Size != 6 {
		t.Errorf("expected size 6 after replace, got %d", info.Size)
	}
}

func TestWriteLeavesNoTemporaries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.WriteContent(ctx, "a/b/c.txt", strings.NewReader("data")); err != nil {
		t.Fatalf("WriteContent failed: %v", err)
	}

	var leftovers []string
	filepath.Walk(store.root, func(path string, fi os.FileInfo, err error) error {
		if err == nil && !fi.IsDir() && strings.HasPrefix(fi.Name(), ".tmp-") {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestReadMissing(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.ReadContent(context.Background(), "missing.txt"); !errors.Is(err, content.ErrContentNotFound) {
		t.Errorf("expected ErrContentNotFound, got %v", err)
	}
}

func TestDeleteContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.WriteContent(ctx, "gone.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("WriteContent failed: %v", err)
	}
	if err := store.DeleteContent(ctx, "gone.txt"); err != nil {
		t.Fatalf("DeleteContent failed: %v", err)
	}
	if err := store.DeleteContent(ctx, "gone.txt"); !errors.Is(err, content.ErrContentNotFound) {
		t.Errorf("expected ErrContentNotFound on second delete, got %v", err)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Traversal components resolve inside the root rather than escaping it.
	if _, err := store.WriteContent(ctx, "../outside.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("WriteContent failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.root, "outside.txt")); err != nil {
		t.Errorf("expected traversal write to land inside root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(store.root), "outside.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Error("write escaped the content root")
	}

	if _, err := store.WriteContent(ctx, "", strings.NewReader("x")); !errors.Is(err, content.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for empty path, got %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := store.ReadContent(ctx, "x"); !errors.Is(err, content.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := store.WriteContent(ctx, "x", strings.NewReader("x")); !errors.Is(err, content.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

func TestEnforcesOSPermissions(t *testing.T) {
	store := newTestStore(t)
	if !content.EnforcesOSPermissions(store) {
		t.Error("filesystem store must report OS permission enforcement")
	}
}

func TestCancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.ReadContent(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
