// Package adapter provides the dispatch pipeline that carries a single file
// operation from the transport layer to a content store.
//
// Each request becomes an OperationContext holding the authenticated
// principal, the target share and store, and the operation name. Handlers
// are wrapped in middleware that can act before and after the handler runs;
// the impersonation middleware in the middleware subpackage is the main
// consumer of this shape.
package adapter

import (
	"context"

	"github.com/driftlab/driftfs/pkg/identity"
	"github.com/driftlab/driftfs/pkg/store/content"
)

// OperationContext carries everything a handler needs to execute one file
// operation. It is created per request by the transport layer and flows
// through the middleware chain unchanged.
type OperationContext struct {
	// Context is the request context for cancellation and timeout control.
	Context context.Context

	// ClientAddr is the remote address of the client connection.
	ClientAddr string

	// Share is the name of the share being operated on.
	Share string

	// Procedure is the operation name, e.g. "READ", "WRITE", "REMOVE".
	// Used for logging and metrics.
	Procedure string

	// User is the authenticated principal, nil for unauthenticated
	// requests the transport chose to let through.
	User *identity.User

	// Store is the content store backing the share.
	Store content.ContentStore
}

// UnixIdentity returns the principal's Unix identity, if it has one.
// Requests without a principal or with a principal that has no uid/gid
// mapping report ok == false.
func (op *OperationContext) UnixIdentity() (uid, gid uint32, ok bool) {
	return op.User.UnixIdentity()
}

// Handler executes one file operation against the store in the context.
type Handler func(op *OperationContext) error

// Middleware wraps a Handler with behavior that runs before and after it.
type Middleware func(next Handler) Handler

// Chain composes middleware around a handler. The first middleware is the
// outermost: Chain(h, a, b) runs a, then b, then h.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
