package authz

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fortifygo/fortify/auth"
)

// Hookable mutation events.  They share the auth package's hook registry
// so one set of callbacks can observe both subsystems.
const (
	EventAddUserRole          auth.Event = "authz.add-user-role"
	EventRemoveUserRole       auth.Event = "authz.remove-user-role"
	EventAddUserPermission    auth.Event = "authz.add-user-permission"
	EventRemoveUserPermission auth.Event = "authz.remove-user-permission"
	EventAddRolePermission    auth.Event = "authz.add-role-permission"
	EventRemoveRolePermission auth.Event = "authz.remove-role-permission"
	EventCreateRole           auth.Event = "authz.create-role"
	EventDeleteRole           auth.Event = "authz.delete-role"
	EventCreatePermission     auth.Event = "authz.create-permission"
	EventDeletePermission     auth.Event = "authz.delete-permission"
)

// Authorizer answers role and permission queries and manages grants.
type Authorizer struct {
	roles RoleStore
	perms PermissionStore
	hooks *auth.Hooks
	log   *zap.Logger
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithLogger sets the structured logger.  Defaults to zap.NewNop.
func WithLogger(log *zap.Logger) Option {
	return func(a *Authorizer) { a.log = log }
}

// WithHooks attaches a mutation hook registry.
func WithHooks(h *auth.Hooks) Option {
	return func(a *Authorizer) { a.hooks = h }
}

// NewAuthorizer wires an Authorizer over the given stores.
func NewAuthorizer(roles RoleStore, perms PermissionStore, opts ...Option) (*Authorizer, error) {
	if roles == nil || perms == nil {
		return nil, ErrNilStore
	}

	a := &Authorizer{
		roles: roles,
		perms: perms,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// ── Queries ─────────────────────────────────────────────────────────────

// HasRole reports whether the user holds at least one of the referenced
// roles.  Each ref is a numeric ID or a role name.  An unknown ref is
// simply not held, not an error.
func (a *Authorizer) HasRole(ctx context.Context, userID int64, refs ...any) (bool, error) {
	if len(refs) == 0 {
		return false, nil
	}

	held, err := a.roles.UserRoles(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, ref := range refs {
		id, name, err := splitRef(ref)
		if err != nil {
			return false, err
		}
		for _, r := range held {
			if (id != 0 && r.ID == id) || (name != "" && r.Name == name) {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasPermission reports whether the user holds at least one of the
// referenced permissions, directly or through any of their roles.
func (a *Authorizer) HasPermission(ctx context.Context, userID int64, refs ...any) (bool, error) {
	if len(refs) == 0 {
		return false, nil
	}

	held, err := a.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return matchPermission(held, refs)
}

// HasDirectPermission is HasPermission restricted to permissions granted
// to the user themselves.  A permission carried only by one of the
// user's roles does not count.
func (a *Authorizer) HasDirectPermission(ctx context.Context, userID int64, refs ...any) (bool, error) {
	if len(refs) == 0 {
		return false, nil
	}

	held, err := a.perms.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return matchPermission(held, refs)
}

func matchPermission(held []Permission, refs []any) (bool, error) {
	for _, ref := range refs {
		id, name, err := splitRef(ref)
		if err != nil {
			return false, err
		}
		for _, p := range held {
			if (id != 0 && p.ID == id) || (name != "" && p.Name == name) {
				return true, nil
			}
		}
	}
	return false, nil
}

// EffectivePermissions returns the union of the user's direct permissions
// and the permissions of every role they hold, deduplicated by ID.
func (a *Authorizer) EffectivePermissions(ctx context.Context, userID int64) ([]Permission, error) {
	direct, err := a.perms.UserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(direct))
	out := make([]Permission, 0, len(direct))
	for _, p := range direct {
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}

	roles, err := a.roles.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		perms, err := a.perms.RolePermissions(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}

	return out, nil
}

// UserRoles returns the live roles held by the user.
func (a *Authorizer) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return a.roles.UserRoles(ctx, userID)
}

// RolePermissions returns the live permissions carried by the referenced
// role.
func (a *Authorizer) RolePermissions(ctx context.Context, roleRef any) ([]Permission, error) {
	role, err := a.resolveRole(ctx, roleRef)
	if err != nil {
		return nil, err
	}
	return a.perms.RolePermissions(ctx, role.ID)
}

// ── User grants ─────────────────────────────────────────────────────────

// AddUserRole connects the user to the referenced role.
func (a *Authorizer) AddUserRole(ctx context.Context, userID int64, roleRef any) error {
	role, err := a.resolveRole(ctx, roleRef)
	if err != nil {
		return err
	}
	if !a.hooks.RunBefore(EventAddUserRole, userID, role) {
		return auth.ErrHookVetoed
	}
	if err := a.roles.AddUserRole(ctx, userID, role.ID); err != nil {
		return err
	}
	a.hooks.RunAfter(EventAddUserRole, userID, role)
	return nil
}

// RemoveUserRole disconnects the user from the referenced role.
func (a *Authorizer) RemoveUserRole(ctx context.Context, userID int64, roleRef any) error {
	role, err := a.resolveRole(ctx, roleRef)
	if err != nil {
		return err
	}
	if !a.hooks.RunBefore(EventRemoveUserRole, userID, role) {
		return auth.ErrHookVetoed
	}
	if err := a.roles.RemoveUserRole(ctx, userID, role.ID); err != nil {
		return err
	}
	a.hooks.RunAfter(EventRemoveUserRole, userID, role)
	return nil
}

// AddUserPermission grants the referenced permission to the user
// directly.
func (a *Authorizer) AddUserPermission(ctx context.Context, userID int64, permRef any) error {
	perm, err := a.resolvePermission(ctx, permRef)
	if err != nil {
		return err
	}
	if !a.hooks.RunBefore(EventAddUserPermission, userID, perm) {
		return auth.ErrHookVetoed
	}
	if err := a.perms.AddUserPermission(ctx, userID, perm.ID); err != nil {
		return err
	}
	a.hooks.RunAfter(EventAddUserPermission, userID, perm)
	return nil
}

// RemoveUserPermission revokes a direct permission grant.  Permissions
// held through roles are unaffected.
func (a *Authorizer) RemoveUserPermission(ctx context.Context, userID int64, permRef any) error {
	perm, err := a.resolvePermission(ctx, permRef)
	if err != nil {
		return err
	}
	if !a.hooks.RunBefore(EventRemoveUserPermission, userID, perm) {
		return auth.ErrHookVetoed
	}
	if err := a.perms.RemoveUserPermission(ctx, userID, perm.ID); err != nil {
		return err
	}
	a.hooks.RunAfter(EventRemoveUserPermission, userID, perm)
	return nil
}

// ── Role-permission grants ──────────────────────────────────────────────

// AddRolePermission attaches the referenced permission to the referenced
// role.
func (a *Authorizer) AddRolePermission(ctx context.Context, roleRef, permRef any) error {
	role, err := a.resolveRole(ctx, roleRef)
	if err != nil {
		return err
	}
	perm, err := a.resolvePermission(ctx, permRef)
	if err != nil {
		return err
	}
	if !a.hooks.RunBefore(EventAddRolePermission, role, perm) {
		return auth.ErrHookVetoed
	}
	if err := a.perms.AddRolePermission(ctx, role.ID, perm.ID); err != nil {
		return err
	}
	a.hooks.RunAfter(EventAddRolePermission, role, perm)
	return nil
}

// RemoveRolePermission detaches the referenced permission from the
// referenced role.
func (a *Authorizer) RemoveRolePermission(ctx context.Context, roleRef, permRef any) error {
	role, err := a.resolveRole(ctx, roleRef)
	if err != nil {
		return err
	}
	perm, err := a.resolvePermission(ctx, permRef)
	if err != nil {
		return err
	}
	if !a.hooks.RunBefore(EventRemoveRolePermission, role, perm) {
		return auth.ErrHookVetoed
	}
	if err := a.perms.RemoveRolePermission(ctx, role.ID, perm.ID); err != nil {
		return err
	}
	a.hooks.RunAfter(EventRemoveRolePermission, role, perm)
	return nil
}

// ── Entity management ───────────────────────────────────────────────────

// CreateRole inserts a new role.
func (a *Authorizer) CreateRole(ctx context.Context, r *Role) error {
	if r == nil || strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if !a.hooks.RunBefore(EventCreateRole, r) {
		return auth.ErrHookVetoed
	}
	if err := a.roles.Create(ctx, r); err != nil {
		return err
	}
	a.hooks.RunAfter(EventCreateRole, r)
	return nil
}

// UpdateRole persists changes to a role.
func (a *Authorizer) UpdateRole(ctx context.Context, r *Role) error {
	if r == nil || strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	return a.roles.Update(ctx, r)
}

// DeleteRole soft-deletes the referenced role after disconnecting it
// from every user and permission, so no grant dangles.
func (a *Authorizer) DeleteRole(ctx context.Context, roleRef any) error {
	role, err := a.resolveRole(ctx, roleRef)
	if err != nil {
		return err
	}
	if !a.hooks.RunBefore(EventDeleteRole, role) {
		return auth.ErrHookVetoed
	}

	if err := a.roles.DisconnectRole(ctx, role.ID); err != nil {
		return err
	}
	if err := a.perms.DisconnectRole(ctx, role.ID); err != nil {
		return err
	}
	if err := a.roles.Delete(ctx, role.ID); err != nil {
		return err
	}
	a.log.Info("role deleted", zap.Int64("role_id", role.ID), zap.String("name", role.Name))

	a.hooks.RunAfter(EventDeleteRole, role)
	return nil
}

// CreatePermission inserts a new permission.
func (a *Authorizer) CreatePermission(ctx context.Context, p *Permission) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !a.hooks.RunBefore(EventCreatePermission, p) {
		return auth.ErrHookVetoed
	}
	if err := a.perms.Create(ctx, p); err != nil {
		return err
	}
	a.hooks.RunAfter(EventCreatePermission, p)
	return nil
}

// UpdatePermission persists changes to a permission.
func (a *Authorizer) UpdatePermission(ctx context.Context, p *Permission) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return a.perms.Update(ctx, p)
}

// DeletePermission soft-deletes the referenced permission after removing
// every grant of it.
func (a *Authorizer) DeletePermission(ctx context.Context, permRef any) error {
	perm, err := a.resolvePermission(ctx, permRef)
	if err != nil {
		return err
	}
	if !a.hooks.RunBefore(EventDeletePermission, perm) {
		return auth.ErrHookVetoed
	}

	if err := a.perms.DisconnectPermission(ctx, perm.ID); err != nil {
		return err
	}
	if err := a.perms.Delete(ctx, perm.ID); err != nil {
		return err
	}
	a.log.Info("permission deleted", zap.Int64("permission_id", perm.ID), zap.String("name", perm.Name))

	a.hooks.RunAfter(EventDeletePermission, perm)
	return nil
}

// AssignRole grants a role by name.  It satisfies the auth package's
// RoleAssigner, letting registration hand out the default role.
func (a *Authorizer) AssignRole(ctx context.Context, userID int64, role string) error {
	return a.AddUserRole(ctx, userID, role)
}

// ── Reference resolution ────────────────────────────────────────────────

// splitRef normalizes a role/permission reference into an ID or a name.
func splitRef(ref any) (int64, string, error) {
	switch v := ref.(type) {
	case int64:
		return v, "", nil
	case int:
		return int64(v), "", nil
	case string:
		if v == "" {
			return 0, "", ErrInvalidRef
		}
		return 0, v, nil
	default:
		return 0, "", ErrInvalidRef
	}
}

func (a *Authorizer) resolveRole(ctx context.Context, ref any) (*Role, error) {
	if r, ok := ref.(*Role); ok {
		return r, nil
	}
	id, name, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	if id != 0 {
		return a.roles.FindByID(ctx, id, false)
	}
	return a.roles.FindByName(ctx, name)
}

func (a *Authorizer) resolvePermission(ctx context.Context, ref any) (*Permission, error) {
	if p, ok := ref.(*Permission); ok {
		return p, nil
	}
	id, name, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	if id != 0 {
		return a.perms.FindByID(ctx, id, false)
	}
	return a.perms.FindByName(ctx, name)
}
