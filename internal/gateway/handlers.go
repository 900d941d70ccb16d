package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/adapter"
	"github.com/driftlab/driftfs/pkg/adapter/middleware"
	"github.com/driftlab/driftfs/pkg/config"
	"github.com/driftlab/driftfs/pkg/identity"
	"github.com/driftlab/driftfs/pkg/impersonate"
	"github.com/driftlab/driftfs/pkg/metrics"
	"github.com/driftlab/driftfs/pkg/registry"
	"github.com/driftlab/driftfs/pkg/store/content"
)

// FileHandler serves the file operations of the gateway. Each request is
// dispatched through the adapter pipeline so that operations on OS-backed
// shares run under the authenticated user's identity.
type FileHandler struct {
	registry      *registry.Registry
	switcher      *impersonate.Switcher
	impersonation config.ImpersonationConfig
	metrics       *metrics.OperationMetrics
}

// NewFileHandler creates the gateway's file operation handler.
func NewFileHandler(
	reg *registry.Registry,
	switcher *impersonate.Switcher,
	impCfg config.ImpersonationConfig,
	opMetrics *metrics.OperationMetrics,
) *FileHandler {
	return &FileHandler{
		registry:      reg,
		switcher:      switcher,
		impersonation: impCfg,
		metrics:       opMetrics,
	}
}

// shareInfo is the JSON shape for share listings.
type shareInfo struct {
	Name       string `json:"name"`
	ReadOnly   bool   `json:"read_only"`
	Permission string `json:"permission"`
}

// fileInfo is the JSON shape for write and stat responses.
type fileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// ListShares returns the shares the principal can read.
func (h *FileHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	principal := h.resolvePrincipalForListing(r)

	infos := make([]shareInfo, 0)
	for _, share := range h.registry.ListShares() {
		perm := h.effectivePermission(principal, share)
		if !perm.CanRead() {
			continue
		}
		infos = append(infos, shareInfo{
			Name:       share.Name,
			ReadOnly:   share.ReadOnly,
			Permission: perm.String(),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// Read streams file content to the client.
func (h *FileHandler) Read(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, "READ", identity.PermissionRead, func(op *adapter.OperationContext, contentPath string) error {
		info, err := op.Store.StatContent(op.Context, contentPath)
		if err != nil {
			return err
		}

		reader, err := op.Store.ReadContent(op.Context, contentPath)
		if err != nil {
			return err
		}
		defer reader.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		if !info.ModTime.IsZero() {
			w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
		}

		n, err := io.Copy(w, reader)
		h.metrics.ObserveBytes("read", n)
		if err != nil {
			// Headers are gone; the copy failure can only be logged.
			return fmt.Errorf("failed to stream content: %w", err)
		}
		return nil
	})
}

// Stat returns file metadata without the content.
func (h *FileHandler) Stat(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, "GETATTR", identity.PermissionRead, func(op *adapter.OperationContext, contentPath string) error {
		info, err := op.Store.StatContent(op.Context, contentPath)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, fileInfo{
			Path:    info.Path,
			Size:    info.Size,
			ModTime: info.ModTime,
		})
		return nil
	})
}

// Write stores the request body as file content.
func (h *FileHandler) Write(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, "WRITE", identity.PermissionReadWrite, func(op *adapter.OperationContext, contentPath string) error {
		n, err := op.Store.WriteContent(op.Context, contentPath, r.Body)
		if err != nil {
			return err
		}
		h.metrics.ObserveBytes("write", n)
		writeJSON(w, http.StatusCreated, fileInfo{Path: contentPath, Size: n})
		return nil
	})
}

// Remove deletes file content.
func (h *FileHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, "REMOVE", identity.PermissionReadWrite, func(op *adapter.OperationContext, contentPath string) error {
		if err := op.Store.DeleteContent(op.Context, contentPath); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

// dispatch runs one file operation through authorization and the adapter
// pipeline. The fn callback receives the validated operation context and
// the share-relative path; any error it returns is mapped to an HTTP
// status. Response writing inside fn happens while the identity switch is
// still held, so reads stream under the requesting user's identity.
func (h *FileHandler) dispatch(
	w http.ResponseWriter,
	r *http.Request,
	procedure string,
	required identity.SharePermission,
	fn func(op *adapter.OperationContext, contentPath string) error,
) {
	start := time.Now()
	shareName := chi.URLParam(r, "share")
	contentPath := chi.URLParam(r, "*")

	share, err := h.registry.GetShare(shareName)
	if err != nil {
		writeError(w, http.StatusNotFound, "share not found")
		return
	}
	store, err := h.registry.GetContentStoreForShare(shareName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "share storage unavailable")
		return
	}

	principal, ok := h.resolvePrincipal(w, r, share)
	if !ok {
		return
	}

	perm := h.effectivePermission(principal, share)
	if !hasPermission(perm, required) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	if required.CanWrite() && share.ReadOnly {
		writeError(w, http.StatusForbidden, "share is read-only")
		return
	}

	cleaned, err := content.CleanPath(contentPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	ctx := h.requestLogContext(r, procedure, shareName, principal, start)

	op := &adapter.OperationContext{
		Context:    ctx,
		ClientAddr: r.RemoteAddr,
		Share:      shareName,
		Procedure:  procedure,
		User:       principal,
		Store:      store,
	}

	handler := func(innerOp *adapter.OperationContext) error {
		return fn(innerOp, cleaned)
	}

	var opErr error
	if h.impersonation.IsEnabled() {
		if h.impersonation.AcquireTimeout > 0 {
			acquireCtx, cancel := context.WithTimeout(op.Context, h.impersonation.AcquireTimeout)
			defer cancel()
			op.Context = acquireCtx
		}
		opErr = adapter.Chain(handler, middleware.Impersonation(h.switcher))(op)
	} else {
		opErr = handler(op)
	}

	status := "ok"
	if opErr != nil {
		status = "error"
		h.writeOperationError(w, ctx, procedure, cleaned, opErr)
	} else {
		logger.InfoCtx(ctx, "operation completed",
			logger.KeyPath, cleaned,
			logger.KeyDurationMs, float64(time.Since(start).Microseconds())/1000.0)
	}
	h.metrics.ObserveOperation(procedure, shareName, status, time.Since(start))
}

// resolvePrincipal determines who the operation runs as. Authenticated
// requests use their principal; anonymous requests fall back to the guest
// user on guest-enabled shares and are rejected otherwise. When no user
// store is configured, everything is anonymous and share defaults apply.
func (h *FileHandler) resolvePrincipal(w http.ResponseWriter, r *http.Request, share *registry.Share) (*identity.User, bool) {
	if principal := PrincipalFromContext(r.Context()); principal != nil {
		return principal, true
	}

	userStore := h.registry.GetUserStore()
	if userStore == nil {
		return nil, true
	}

	if share.GuestAccess {
		guest, err := userStore.GetGuestUser()
		if err == nil {
			return guest, true
		}
	}

	w.Header().Set("WWW-Authenticate", `Basic realm="driftfs"`)
	writeError(w, http.StatusUnauthorized, "authentication required")
	return nil, false
}

// resolvePrincipalForListing is the non-failing variant used by ListShares.
func (h *FileHandler) resolvePrincipalForListing(r *http.Request) *identity.User {
	if principal := PrincipalFromContext(r.Context()); principal != nil {
		return principal
	}
	if userStore := h.registry.GetUserStore(); userStore != nil {
		if guest, err := userStore.GetGuestUser(); err == nil {
			return guest
		}
	}
	return nil
}

// effectivePermission resolves the principal's permission on a share.
func (h *FileHandler) effectivePermission(principal *identity.User, share *registry.Share) identity.SharePermission {
	userStore := h.registry.GetUserStore()
	if userStore == nil {
		// Open mode: no users configured, share defaults apply to everyone.
		return share.DefaultPermission
	}
	if principal == nil {
		return identity.PermissionNone
	}
	return userStore.ResolveSharePermission(principal, share.Name, share.DefaultPermission)
}

// hasPermission checks a permission level against the operation's
// requirement.
func hasPermission(perm, required identity.SharePermission) bool {
	return perm.Level() >= required.Level()
}

// requestLogContext attaches the operation's logging context so every log
// line inside the pipeline carries the request id, procedure, share, and
// principal.
func (h *FileHandler) requestLogContext(
	r *http.Request,
	procedure, shareName string,
	principal *identity.User,
	start time.Time,
) context.Context {
	clientIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		clientIP = host
	}

	lc := &logger.LogContext{
		RequestID: chimiddleware.GetReqID(r.Context()),
		Procedure: procedure,
		Share:     shareName,
		ClientIP:  clientIP,
		StartTime: start,
	}
	if principal != nil {
		lc.Username = principal.Username
		if uid, gid, ok := principal.UnixIdentity(); ok {
			lc.UID = uid
			lc.GID = gid
		}
	}
	return logger.WithContext(r.Context(), lc)
}

// writeOperationError maps pipeline errors to HTTP responses and logs them.
func (h *FileHandler) writeOperationError(w http.ResponseWriter, ctx context.Context, procedure, path string, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, content.ErrContentNotFound):
		status = http.StatusNotFound
		message = "not found"
	case errors.Is(err, content.ErrInvalidPath):
		status = http.StatusBadRequest
		message = "invalid path"
	case errors.Is(err, os.ErrPermission):
		status = http.StatusForbidden
		message = "permission denied"
	case errors.Is(err, impersonate.ErrSwitchFailed),
		errors.Is(err, impersonate.ErrUnsupported):
		message = "identity switch failed"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		message = "server busy"
	case errors.Is(err, content.ErrStoreClosed):
		status = http.StatusServiceUnavailable
		message = "storage unavailable"
	}

	logger.WarnCtx(ctx, "operation failed",
		logger.KeyPath, path,
		logger.KeyStatus, status,
		logger.KeyError, err.Error())
	writeError(w, status, message)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.KeyError, err.Error())
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
