// Package authz implements flat role and permission authorization.
//
// The model has two entity kinds, roles and permissions, and three
// relations: users hold roles, users hold permissions directly, and roles
// carry permissions.  There is no role hierarchy; a user's effective
// permission set is the union of their direct permissions and the
// permissions of every role they hold.
//
// The [Authorizer] is the single entry point.  Query methods (HasRole,
// HasPermission) accept references that are either numeric IDs or names,
// so call sites can stay readable:
//
//	ok, err := authorizer.HasRole(ctx, userID, "admin", "moderator")
//
// Mutation methods run through the same before/after hook registry the
// auth package uses, so an application can veto or observe grants.
package authz
