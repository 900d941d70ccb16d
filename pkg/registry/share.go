package registry

import "github.com/driftlab/driftfs/pkg/identity"

// Share binds a share name to a named content store plus access rules.
// Multiple shares can reference the same store instance.
type Share struct {
	// Name is the share name as it appears in request paths.
	Name string

	// ContentStore is the name of the registered content store backing
	// this share.
	ContentStore string

	// ReadOnly rejects all mutating operations regardless of the user's
	// permission level.
	ReadOnly bool

	// DefaultPermission applies when neither the user nor any of their
	// groups has an explicit permission for this share.
	DefaultPermission identity.SharePermission

	// GuestAccess allows unauthenticated requests to use this share under
	// the configured guest identity.
	GuestAccess bool
}

// ShareConfig contains the configuration needed to create a share.
type ShareConfig struct {
	Name              string
	ContentStore      string
	ReadOnly          bool
	DefaultPermission identity.SharePermission
	GuestAccess       bool
}
