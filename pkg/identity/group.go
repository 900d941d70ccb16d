package identity

import "fmt"

// Group represents a DriftFS group for organizing users and permissions.
//
// Groups can have share-level permissions that are inherited by all members.
// When a user belongs to multiple groups, the highest permission level wins.
type Group struct {
	// Name is the unique identifier for the group.
	Name string `yaml:"name" mapstructure:"name"`

	// GID is the Unix group ID.
	GID uint32 `yaml:"gid" mapstructure:"gid"`

	// SharePermissions maps share names to permission levels.
	// All group members inherit these permissions.
	SharePermissions map[string]SharePermission `yaml:"share_permissions" mapstructure:"share_permissions"`

	// Description is an optional human-readable description of the group.
	Description string `yaml:"description,omitempty" mapstructure:"description"`
}

// GetSharePermission returns the group's permission for a share.
// Returns PermissionNone if no permission is set for the share.
func (g *Group) GetSharePermission(shareName string) SharePermission {
	if g.SharePermissions == nil {
		return PermissionNone
	}
	perm, ok := g.SharePermissions[shareName]
	if !ok {
		return PermissionNone
	}
	return perm
}

// Validate checks if the group has valid configuration.
func (g *Group) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("group name is required")
	}
	for shareName, perm := range g.SharePermissions {
		if !perm.IsValid() {
			return fmt.Errorf("invalid permission %q for share %q", perm, shareName)
		}
	}
	return nil
}
