package authz

import "errors"

var (
	// ErrRoleNotFound is returned when a role reference matches no live
	// role.
	ErrRoleNotFound = errors.New("authz: role not found")

	// ErrPermissionNotFound is returned when a permission reference
	// matches no live permission.
	ErrPermissionNotFound = errors.New("authz: permission not found")

	// ErrInvalidRef is returned when a role or permission reference is
	// neither a numeric ID nor a name.
	ErrInvalidRef = errors.New("authz: reference must be an ID or a name")

	// ErrEmptyName is returned when a role or permission is created or
	// renamed with an empty name.
	ErrEmptyName = errors.New("authz: name must not be empty")

	// ErrNilStore is returned when an Authorizer is constructed without
	// its stores.
	ErrNilStore = errors.New("authz: store must not be nil")
)
