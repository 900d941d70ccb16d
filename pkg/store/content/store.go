// Package content defines the storage abstraction for file data.
//
// A ContentStore holds the bytes of files under a share, addressed by their
// share-relative path. The store manages only raw data; authentication,
// share permissions, and identity handling happen in the layers above.
//
// Backends differ in one property that matters to those layers: whether the
// operating system checks permissions on each access. A local filesystem
// store does (file modes and ownership apply), an in-memory or object store
// does not. Backends advertise this through OSPermissionStore so callers can
// decide whether an operation needs to run under the requesting user's
// identity.
package content

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// Common errors returned by ContentStore implementations.
var (
	// ErrContentNotFound indicates the requested path has no content.
	ErrContentNotFound = errors.New("content not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("content store is closed")

	// ErrInvalidPath indicates a path that escapes the share root or is
	// otherwise malformed.
	ErrInvalidPath = errors.New("invalid content path")
)

// ContentInfo describes stored content without reading its data.
type ContentInfo struct {
	// Path is the share-relative path of the content.
	Path string

	// Size is the content size in bytes.
	Size int64

	// ModTime is the last modification time. Zero if the backend does not
	// track it.
	ModTime time.Time
}

// ContentStore provides file data storage for a single share.
//
// Paths are share-relative, forward-slash separated, and never absolute.
// Implementations must validate paths with CleanPath before touching the
// backend.
//
// Implementations must be safe for concurrent use. Concurrent writes to the
// same path are last-write-wins.
type ContentStore interface {
	// ReadContent returns a reader for the content at the given path.
	// The caller must close the reader. Returns ErrContentNotFound if
	// nothing is stored at the path.
	ReadContent(ctx context.Context, contentPath string) (io.ReadCloser, error)

	// WriteContent stores the data read from r at the given path, replacing
	// any existing content. Returns the number of bytes written. The write
	// is atomic: readers never observe partial content.
	WriteContent(ctx context.Context, contentPath string, r io.Reader) (int64, error)

	// DeleteContent removes the content at the given path.
	// Returns ErrContentNotFound if nothing is stored there.
	DeleteContent(ctx context.Context, contentPath string) error

	// StatContent returns information about the content at the given path
	// without reading its data. Returns ErrContentNotFound if nothing is
	// stored there.
	StatContent(ctx context.Context, contentPath string) (ContentInfo, error)

	// Close releases backend resources. The store is unusable afterwards;
	// operations return ErrStoreClosed.
	Close(ctx context.Context) error
}

// OSPermissionStore is implemented by stores whose backend enforces
// operating-system permissions on each access.
//
// When EnforcesOSPermissions reports true, operations against the store must
// run under the requesting user's identity so the kernel applies that user's
// access rights. When false, identity switching is pointless overhead and
// callers skip it.
type OSPermissionStore interface {
	EnforcesOSPermissions() bool
}

// EnforcesOSPermissions reports whether the store's backend applies
// operating-system permission checks. Stores that do not implement
// OSPermissionStore are assumed not to.
func EnforcesOSPermissions(s ContentStore) bool {
	if os, ok := s.(OSPermissionStore); ok {
		return os.EnforcesOSPermissions()
	}
	return false
}

// CleanPath validates and normalizes a share-relative content path.
//
// The result uses forward slashes, has no leading slash, and never escapes
// the share root. Returns ErrInvalidPath for absolute paths, empty paths,
// and paths that traverse above the root.
func CleanPath(contentPath string) (string, error) {
	if contentPath == "" {
		return "", ErrInvalidPath
	}
	if strings.ContainsRune(contentPath, 0) {
		return "", ErrInvalidPath
	}

	cleaned := path.Clean("/" + contentPath)
	if cleaned == "/" {
		return "", ErrInvalidPath
	}

	// Clean on a rooted path collapses any ".." below the root, so the
	// result cannot traverse upward once the leading slash is stripped.
	return cleaned[1:], nil
}
