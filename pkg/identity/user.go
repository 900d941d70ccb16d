package identity

import (
	"fmt"
	"slices"
	"time"
)

// UserRole represents the role of a user in the system.
type UserRole string

const (
	// RoleUser is a regular user with limited permissions.
	RoleUser UserRole = "user"
	// RoleAdmin is an administrator with full permissions.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is a valid UserRole.
func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a DriftFS user for authentication and authorization.
//
// The optional Unix identity (UID/GID) links the user to an operating-system
// account. When both are set, filesystem operations on OS-backed shares run
// under that identity; when either is absent, operations run under the
// server's own identity.
type User struct {
	// ID is the unique identifier for the user (UUID).
	ID string `json:"id" yaml:"id" mapstructure:"id"`

	// Username is the unique human-readable identifier for the user.
	Username string `json:"username" yaml:"username" mapstructure:"username"`

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `json:"-" yaml:"password_hash" mapstructure:"password_hash"`

	// Enabled indicates whether the user account is active.
	// Disabled users cannot authenticate.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Role is the user's role in the system (admin or user).
	Role UserRole `json:"role" yaml:"role" mapstructure:"role"`

	// UID is the Unix user ID, if the user maps to an OS account.
	UID *uint32 `json:"uid,omitempty" yaml:"uid,omitempty" mapstructure:"uid"`

	// GID is the Unix primary group ID, if the user maps to an OS account.
	GID *uint32 `json:"gid,omitempty" yaml:"gid,omitempty" mapstructure:"gid"`

	// GIDs are supplementary Unix group IDs.
	GIDs []uint32 `json:"gids,omitempty" yaml:"gids,omitempty" mapstructure:"gids"`

	// Groups is a list of DriftFS group names this user belongs to.
	// Permissions are inherited from these groups.
	Groups []string `json:"groups,omitempty" yaml:"groups,omitempty" mapstructure:"groups"`

	// SharePermissions maps share names to explicit permission levels.
	// These take precedence over group permissions.
	SharePermissions map[string]SharePermission `json:"share_permissions,omitempty" yaml:"share_permissions,omitempty" mapstructure:"share_permissions"`

	// DisplayName is the human-readable name for the user.
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty" mapstructure:"display_name"`

	// Email is the user's email address.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// CreatedAt is when the user was created.
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty" mapstructure:"created_at"`

	// LastLogin is when the user last authenticated.
	LastLogin time.Time `json:"last_login,omitempty" yaml:"last_login,omitempty" mapstructure:"last_login"`
}

// UnixIdentity returns the user's Unix (uid, gid) pair.
// The boolean is false when the user does not map to an OS account,
// in which case the ids must not be used.
func (u *User) UnixIdentity() (uid, gid uint32, ok bool) {
	if u == nil || u.UID == nil || u.GID == nil {
		return 0, 0, false
	}
	return *u.UID, *u.GID, true
}

// GetDisplayName returns the display name, or username if display name is not set.
func (u *User) GetDisplayName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// HasGroup checks if the user belongs to the specified group.
func (u *User) HasGroup(groupName string) bool {
	return slices.Contains(u.Groups, groupName)
}

// GetExplicitSharePermission returns the user's explicit permission for a share.
// Returns PermissionNone and false if no explicit permission is set.
func (u *User) GetExplicitSharePermission(shareName string) (SharePermission, bool) {
	if u.SharePermissions == nil {
		return PermissionNone, false
	}
	perm, ok := u.SharePermissions[shareName]
	if !ok {
		return PermissionNone, false
	}
	return perm, ok
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.Role != "" && !u.Role.IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	if (u.UID == nil) != (u.GID == nil) {
		return fmt.Errorf("uid and gid must be set together")
	}
	for shareName, perm := range u.SharePermissions {
		if !perm.IsValid() {
			return fmt.Errorf("invalid permission %q for share %q", perm, shareName)
		}
	}
	return nil
}

// IsAdmin checks if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
