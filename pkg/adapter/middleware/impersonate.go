// Package middleware contains the middleware components of the adapter
// dispatch pipeline.
package middleware

import (
	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/adapter"
	"github.com/driftlab/driftfs/pkg/impersonate"
	"github.com/driftlab/driftfs/pkg/store/content"
)

// Impersonation brackets handlers with a filesystem identity switch so that
// storage access happens under the authenticated user's uid/gid and the
// kernel applies that user's permissions.
//
// The switch happens only when it matters: the principal must carry a Unix
// identity and the share's store must enforce OS permissions. In every other
// case the handler runs directly under the server's own identity, which is
// the correct behavior for memory and object-store backends as well as for
// principals with no uid/gid mapping.
//
// A failed switch aborts the operation: running a handler under the wrong
// identity would bypass the permission model the switch exists to honor.
func Impersonation(switcher *impersonate.Switcher) adapter.Middleware {
	return func(next adapter.Handler) adapter.Handler {
		return func(op *adapter.OperationContext) error {
			uid, gid, ok := op.UnixIdentity()
			if !ok {
				return next(op)
			}
			if !content.EnforcesOSPermissions(op.Store) {
				return next(op)
			}

			logger.DebugCtx(op.Context, "executing under user identity",
				logger.KeyProcedure, op.Procedure,
				logger.KeyFsUID, uid,
				logger.KeyFsGID, gid)

			return switcher.WithIdentity(op.Context, uid, gid, func() error {
				return next(op)
			})
		}
	}
}
