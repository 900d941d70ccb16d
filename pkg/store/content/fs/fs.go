// Package fs implements filesystem-based content storage.
//
// Content lives as regular files under a root directory, so file modes and
// ownership apply on every access. This is the one backend where operations
// must run under the requesting user's identity: the store reports
// EnforcesOSPermissions() == true and the layers above bracket each call
// accordingly.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/store/content"
)

// FSContentStore implements content.ContentStore backed by a directory tree.
//
// Writes are atomic: data goes to a temporary file in the same directory and
// is renamed into place, so readers never observe partial content. Permission
// errors from the kernel pass through wrapped so callers can map them to
// access-denied responses.
type FSContentStore struct {
	root string

	mu     sync.RWMutex
	closed bool
}

// NewFSContentStore creates a store rooted at the given directory, creating
// it if necessary.
func NewFSContentStore(root string) (*FSContentStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create content root: %w", err)
	}

	logger.Debug("filesystem content store ready", logger.KeyPath, abs)
	return &FSContentStore{root: abs}, nil
}

// EnforcesOSPermissions reports true: the kernel checks file modes and
// ownership on every access to this backend.
func (s *FSContentStore) EnforcesOSPermissions() bool { return true }

// fullPath validates the share-relative path and resolves it under the root.
func (s *FSContentStore) fullPath(contentPath string) (string, error) {
	cleaned, err := content.CleanPath(contentPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *FSContentStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return content.ErrStoreClosed
	}
	return nil
}

// ReadContent opens the file at the given path for sequential reading.
func (s *FSContentStore) ReadContent(ctx context.Context, contentPath string) (io.ReadCloser, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := s.fullPath(contentPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, content.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return f, nil
}

// WriteContent stores data atomically via a temporary file and rename.
func (s *FSContentStore) WriteContent(ctx context.Context, contentPath string, r io.Reader) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	full, err := s.fullPath(contentPath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create content directory: %w", err)
	}

	// The temporary file lives next to the target so the rename stays on
	// one filesystem and remains atomic.
	tmp := filepath.Join(filepath.Dir(full), ".tmp-"+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to write content: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to sync content: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to close content: %w", err)
	}

	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to publish content: %w", err)
	}
	return n, nil
}

// DeleteContent removes the file at the given path.
func (s *FSContentStore) DeleteContent(ctx context.Context, contentPath string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := s.fullPath(contentPath)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return content.ErrContentNotFound
		}
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// StatContent returns size and modification time without reading the file.
func (s *FSContentStore) StatContent(ctx context.Context, contentPath string) (content.ContentInfo, error) {
	if err := s.checkOpen(); err != nil {
		return content.ContentInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return content.ContentInfo{}, err
	}

	full, err := s.fullPath(contentPath)
	if err != nil {
		return content.ContentInfo{}, err
	}

	fi, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return content.ContentInfo{}, content.ErrContentNotFound
		}
		return content.ContentInfo{}, fmt.Errorf("failed to stat content: %w", err)
	}
	if fi.IsDir() {
		return content.ContentInfo{}, content.ErrContentNotFound
	}

	cleaned, _ := content.CleanPath(contentPath)
	return content.ContentInfo{
		Path:    cleaned,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}, nil
}

// Close marks the store closed. No backend resources need releasing.
func (s *FSContentStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
