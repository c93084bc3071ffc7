package authz

import "context"

// RoleStore is the persistence boundary for roles and the user-role
// relation.
type RoleStore interface {
	// Create inserts the role and assigns its ID on the passed struct.
	// Name uniqueness is the store's responsibility.
	Create(ctx context.Context, r *Role) error

	// Update persists changes to an existing role.
	Update(ctx context.Context, r *Role) error

	// Delete soft-deletes the role.  Junction rows are removed
	// separately by the Authorizer before the delete commits.
	Delete(ctx context.Context, id int64) error

	// FindByID returns the role, or [ErrRoleNotFound].  Soft-deleted
	// roles are only visible when includeDeleted is set.
	FindByID(ctx context.Context, id int64, includeDeleted bool) (*Role, error)

	// FindByName returns the live role with the given name, or
	// [ErrRoleNotFound].
	FindByName(ctx context.Context, name string) (*Role, error)

	// List returns all roles, optionally including soft-deleted ones.
	List(ctx context.Context, includeDeleted bool) ([]Role, error)

	// AddUserRole connects a user to a role.  Re-adding an existing
	// connection is a no-op.
	AddUserRole(ctx context.Context, userID, roleID int64) error

	// RemoveUserRole disconnects a user from a role.  Removing an
	// absent connection is a no-op.
	RemoveUserRole(ctx context.Context, userID, roleID int64) error

	// UserRoles returns the live roles held by a user.
	UserRoles(ctx context.Context, userID int64) ([]Role, error)

	// DisconnectRole removes every user-role row for the role.  Used
	// before a role is deleted so no user keeps a dangling grant.
	DisconnectRole(ctx context.Context, roleID int64) error
}

// PermissionStore is the persistence boundary for permissions and the
// user-permission and role-permission relations.
type PermissionStore interface {
	// Create inserts the permission and assigns its ID on the passed
	// struct.  Name uniqueness is the store's responsibility.
	Create(ctx context.Context, p *Permission) error

	// Update persists changes to an existing permission.
	Update(ctx context.Context, p *Permission) error

	// Delete soft-deletes the permission.  Junction rows are removed
	// separately by the Authorizer before the delete commits.
	Delete(ctx context.Context, id int64) error

	// FindByID returns the permission, or [ErrPermissionNotFound].
	// Soft-deleted permissions are only visible when includeDeleted is
	// set.
	FindByID(ctx context.Context, id int64, includeDeleted bool) (*Permission, error)

	// FindByName returns the live permission with the given name, or
	// [ErrPermissionNotFound].
	FindByName(ctx context.Context, name string) (*Permission, error)

	// List returns all permissions, optionally including soft-deleted
	// ones.
	List(ctx context.Context, includeDeleted bool) ([]Permission, error)

	// AddUserPermission grants a permission to a user directly.
	// Re-adding an existing grant is a no-op.
	AddUserPermission(ctx context.Context, userID, permID int64) error

	// RemoveUserPermission revokes a direct grant.  Removing an absent
	// grant is a no-op.
	RemoveUserPermission(ctx context.Context, userID, permID int64) error

	// UserPermissions returns the live permissions granted to a user
	// directly, not through roles.
	UserPermissions(ctx context.Context, userID int64) ([]Permission, error)

	// AddRolePermission attaches a permission to a role.
	AddRolePermission(ctx context.Context, roleID, permID int64) error

	// RemoveRolePermission detaches a permission from a role.
	RemoveRolePermission(ctx context.Context, roleID, permID int64) error

	// RolePermissions returns the live permissions carried by a role.
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)

	// DisconnectPermission removes every user-permission and
	// role-permission row for the permission.
	DisconnectPermission(ctx context.Context, permID int64) error

	// DisconnectRole removes every role-permission row for the role.
	DisconnectRole(ctx context.Context, roleID int64) error
}
