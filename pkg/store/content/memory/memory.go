// Package memory implements in-memory content storage.
//
// Data lives in process memory with no OS-level permission checks, so the
// store does not implement OS permission enforcement and operations against
// it never need an identity switch. Intended for tests and ephemeral shares.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/driftlab/driftfs/pkg/store/content"
)

type entry struct {
	data    []byte
	modTime time.Time
}

// MemoryContentStore implements content.ContentStore backed by a map.
type MemoryContentStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	closed  bool
}

// NewMemoryContentStore creates an empty in-memory store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{entries: make(map[string]entry)}
}

// EnforcesOSPermissions reports false: memory has no OS permission model.
func (s *MemoryContentStore) EnforcesOSPermissions() bool { return false }

// ReadContent returns a reader over a copy of the stored bytes.
func (s *MemoryContentStore) ReadContent(ctx context.Context, contentPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleaned, err := content.CleanPath(contentPath)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, content.ErrStoreClosed
	}

	e, ok := s.entries[cleaned]
	if !ok {
		return nil, content.ErrContentNotFound
	}
	// Copy so later writes to the same path cannot mutate an open reader.
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

// WriteContent stores the data, replacing any existing content at the path.
func (s *MemoryContentStore) WriteContent(ctx context.Context, contentPath string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cleaned, err := content.CleanPath(contentPath)
	if err != nil {
		return 0, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, content.ErrStoreClosed
	}

	s.entries[cleaned] = entry{data: data, modTime: time.Now()}
	return int64(len(data)), nil
}

// DeleteContent removes the content at the path.
func (s *MemoryContentStore) DeleteContent(ctx context.Context, contentPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleaned, err := content.CleanPath(contentPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return content.ErrStoreClosed
	}

	if _, ok := s.entries[cleaned]; !ok {
		return content.ErrContentNotFound
	}
	delete(s.entries, cleaned)
	return nil
}

// StatContent returns size and modification time for the stored content.
func (s *MemoryContentStore) StatContent(ctx context.Context, contentPath string) (content.ContentInfo, error) {
	if err := ctx.Err(); err != nil {
		return content.ContentInfo{}, err
	}
	cleaned, err := content.CleanPath(contentPath)
	if err != nil {
		return content.ContentInfo{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return content.ContentInfo{}, content.ErrStoreClosed
	}

	e, ok := s.entries[cleaned]
	if !ok {
		return content.ContentInfo{}, content.ErrContentNotFound
	}
	return content.ContentInfo{
		Path:    cleaned,
		Size:    int64(len(e.data)),
		ModTime: e.modTime,
	}, nil
}

// Close marks the store closed and drops all content.
func (s *MemoryContentStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
