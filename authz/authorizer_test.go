package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fortifygo/fortify/auth"
	"github.com/fortifygo/fortify/authz"
	"github.com/fortifygo/fortify/inmemory"
)

type harness struct {
	az    *authz.Authorizer
	roles *inmemory.RoleStore
	perms *inmemory.PermissionStore
	hooks *auth.Hooks
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		roles: inmemory.NewRoleStore(),
		perms: inmemory.NewPermissionStore(),
		hooks: auth.NewHooks(),
	}
	az, err := authz.NewAuthorizer(h.roles, h.perms, authz.WithHooks(h.hooks))
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	h.az = az
	return h
}

func (h *harness) mustRole(t *testing.T, name string) *authz.Role {
	t.Helper()
	r := &authz.Role{Name: name, Label: name}
	if err := h.az.CreateRole(context.Background(), r); err != nil {
		t.Fatalf("CreateRole(%q): %v", name, err)
	}
	return r
}

func (h *harness) mustPermission(t *testing.T, name string) *authz.Permission {
	t.Helper()
	p := &authz.Permission{Name: name, Label: name}
	if err := h.az.CreatePermission(context.Background(), p); err != nil {
		t.Fatalf("CreatePermission(%q): %v", name, err)
	}
	return p
}

// ──────────────────────────────────────────────────────────────────────────────
// HasRole
// ──────────────────────────────────────────────────────────────────────────────

func TestHasRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.mustRole(t, "admin")
	h.mustRole(t, "moderator")

	const userID = int64(7)
	if err := h.az.AddUserRole(ctx, userID, "admin"); err != nil {
		t.Fatalf("AddUserRole: %v", err)
	}

	// By name, by ID, and OR-semantics over several refs.
	tests := []struct {
		name string
		refs []any
		want bool
	}{
		{"by name", []any{"admin"}, true},
		{"by id", []any{admin.ID}, true},
		{"unheld", []any{"moderator"}, false},
		{"any of several", []any{"moderator", "admin"}, true},
		{"unknown name", []any{"wizard"}, false},
		{"no refs", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.az.HasRole(ctx, userID, tt.refs...)
			if err != nil || got != tt.want {
				t.Errorf("HasRole(%v) = (%v, %v), want (%v, nil)", tt.refs, got, err, tt.want)
			}
		})
	}
}

func TestHasRole_InvalidRef(t *testing.T) {
	h := newHarness(t)
	_, err := h.az.HasRole(context.Background(), 1, 3.14)
	if !errors.Is(err, authz.ErrInvalidRef) {
		t.Errorf("expected ErrInvalidRef, got %v", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// HasPermission: direct and through roles
// ──────────────────────────────────────────────────────────────────────────────

func TestHasPermission_Direct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mustPermission(t, "posts.edit")

	const userID = int64(11)
	if err := h.az.AddUserPermission(ctx, userID, "posts.edit"); err != nil {
		t.Fatal(err)
	}

	ok, err := h.az.HasPermission(ctx, userID, "posts.edit")
	if err != nil || !ok {
		t.Errorf("direct grant: ok=%v err=%v", ok, err)
	}
	ok, _ = h.az.HasPermission(ctx, userID, "posts.delete")
	if ok {
		t.Error("ungranted permission reported held")
	}
}

func TestHasPermission_ThroughRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mustRole(t, "editor")
	perm := h.mustPermission(t, "posts.publish")

	if err := h.az.AddRolePermission(ctx, "editor", "posts.publish"); err != nil {
		t.Fatal(err)
	}
	const userID = int64(12)
	if err := h.az.AddUserRole(ctx, userID, "editor"); err != nil {
		t.Fatal(err)
	}

	ok, err := h.az.HasPermission(ctx, userID, perm.ID)
	if err != nil || !ok {
		t.Errorf("role-carried grant: ok=%v err=%v", ok, err)
	}

	// Dropping the role drops the permission.
	if err := h.az.RemoveUserRole(ctx, userID, "editor"); err != nil {
		t.Fatal(err)
	}
	ok, _ = h.az.HasPermission(ctx, userID, "posts.publish")
	if ok {
		t.Error("permission survived role removal")
	}
}

func TestHasDirectPermission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mustRole(t, "editor")
	h.mustPermission(t, "posts.publish")
	h.mustPermission(t, "posts.edit")

	if err := h.az.AddRolePermission(ctx, "editor", "posts.publish"); err != nil {
		t.Fatal(err)
	}
	const userID = int64(17)
	if err := h.az.AddUserRole(ctx, userID, "editor"); err != nil {
		t.Fatal(err)
	}
	if err := h.az.AddUserPermission(ctx, userID, "posts.edit"); err != nil {
		t.Fatal(err)
	}

	ok, err := h.az.HasDirectPermission(ctx, userID, "posts.edit")
	if err != nil || !ok {
		t.Errorf("direct grant: ok=%v err=%v", ok, err)
	}

	// Role-carried permissions are visible to HasPermission but not to
	// the direct check.
	ok, err = h.az.HasPermission(ctx, userID, "posts.publish")
	if err != nil || !ok {
		t.Errorf("union check: ok=%v err=%v", ok, err)
	}
	ok, err = h.az.HasDirectPermission(ctx, userID, "posts.publish")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("role-carried permission passed the direct check")
	}

	if ok, _ := h.az.HasDirectPermission(ctx, userID); ok {
		t.Error("empty ref list reported held")
	}
}

func TestEffectivePermissions_Union(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mustRole(t, "editor")
	h.mustPermission(t, "posts.publish")
	h.mustPermission(t, "posts.edit")

	const userID = int64(13)
	// "posts.edit" both directly and through the role; it must appear once.
	if err := h.az.AddUserPermission(ctx, userID, "posts.edit"); err != nil {
		t.Fatal(err)
	}
	if err := h.az.AddRolePermission(ctx, "editor", "posts.edit"); err != nil {
		t.Fatal(err)
	}
	if err := h.az.AddRolePermission(ctx, "editor", "posts.publish"); err != nil {
		t.Fatal(err)
	}
	if err := h.az.AddUserRole(ctx, userID, "editor"); err != nil {
		t.Fatal(err)
	}

	perms, err := h.az.EffectivePermissions(ctx, userID)
	if err != nil {
		t.Fatalf("EffectivePermissions: %v", err)
	}
	if len(perms) != 2 {
		t.Errorf("effective permissions = %d, want 2 (deduplicated)", len(perms))
	}
}

// Revoking a direct grant must not touch the same permission held through
// a role.
func TestRemoveUserPermission_KeepsRoleGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mustRole(t, "editor")
	h.mustPermission(t, "posts.edit")

	const userID = int64(14)
	_ = h.az.AddUserPermission(ctx, userID, "posts.edit")
	_ = h.az.AddRolePermission(ctx, "editor", "posts.edit")
	_ = h.az.AddUserRole(ctx, userID, "editor")

	if err := h.az.RemoveUserPermission(ctx, userID, "posts.edit"); err != nil {
		t.Fatal(err)
	}
	ok, err := h.az.HasPermission(ctx, userID, "posts.edit")
	if err != nil || !ok {
		t.Errorf("role-carried grant lost with the direct one: ok=%v err=%v", ok, err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Hook veto
// ──────────────────────────────────────────────────────────────────────────────

func TestAddUserRole_HookVeto(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mustRole(t, "admin")
	h.hooks.Before(authz.EventAddUserRole, func(auth.Event, ...any) bool { return false })

	err := h.az.AddUserRole(ctx, 21, "admin")
	if !errors.Is(err, auth.ErrHookVetoed) {
		t.Fatalf("expected ErrHookVetoed, got %v", err)
	}
	ok, _ := h.az.HasRole(ctx, 21, "admin")
	if ok {
		t.Error("vetoed grant must not be stored")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Entity management and cascades
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateRole_Validation(t *testing.T) {
	h := newHarness(t)
	for _, r := range []*authz.Role{nil, {Name: ""}, {Name: "   "}} {
		if err := h.az.CreateRole(context.Background(), r); !errors.Is(err, authz.ErrEmptyName) {
			t.Errorf("CreateRole(%v): expected ErrEmptyName, got %v", r, err)
		}
	}
}

func TestCreateRole_DuplicateName(t *testing.T) {
	h := newHarness(t)
	h.mustRole(t, "admin")
	err := h.az.CreateRole(context.Background(), &authz.Role{Name: "admin"})
	if !errors.Is(err, inmemory.ErrDuplicate) {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestDeleteRole_Cascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	role := h.mustRole(t, "editor")
	h.mustPermission(t, "posts.edit")

	const userID = int64(31)
	_ = h.az.AddUserRole(ctx, userID, "editor")
	_ = h.az.AddRolePermission(ctx, "editor", "posts.edit")

	if err := h.az.DeleteRole(ctx, "editor"); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}

	if ok, _ := h.az.HasRole(ctx, userID, role.ID); ok {
		t.Error("user still holds the deleted role")
	}
	if ok, _ := h.az.HasPermission(ctx, userID, "posts.edit"); ok {
		t.Error("user still holds a permission through the deleted role")
	}
	if _, err := h.roles.FindByName(ctx, "editor"); !errors.Is(err, authz.ErrRoleNotFound) {
		t.Errorf("deleted role still resolvable by name: %v", err)
	}
	// Soft delete: the row is still reachable when asked for explicitly.
	if _, err := h.roles.FindByID(ctx, role.ID, true); err != nil {
		t.Errorf("soft-deleted role gone entirely: %v", err)
	}
}

func TestDeletePermission_Cascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mustRole(t, "editor")
	perm := h.mustPermission(t, "posts.edit")

	const userID = int64(32)
	_ = h.az.AddUserPermission(ctx, userID, "posts.edit")
	_ = h.az.AddRolePermission(ctx, "editor", "posts.edit")
	_ = h.az.AddUserRole(ctx, userID, "editor")

	if err := h.az.DeletePermission(ctx, perm.ID); err != nil {
		t.Fatalf("DeletePermission: %v", err)
	}
	if ok, _ := h.az.HasPermission(ctx, userID, perm.ID); ok {
		t.Error("deleted permission still held")
	}
	if perms, _ := h.az.RolePermissions(ctx, "editor"); len(perms) != 0 {
		t.Errorf("role still carries %d permissions after cascade", len(perms))
	}
}

func TestResolve_UnknownRefs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.az.AddUserRole(ctx, 1, "ghost"); !errors.Is(err, authz.ErrRoleNotFound) {
		t.Errorf("expected ErrRoleNotFound, got %v", err)
	}
	if err := h.az.AddUserPermission(ctx, 1, int64(999)); !errors.Is(err, authz.ErrPermissionNotFound) {
		t.Errorf("expected ErrPermissionNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RoleAssigner adapter
// ──────────────────────────────────────────────────────────────────────────────

func TestAssignRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mustRole(t, "member")

	var assigner auth.RoleAssigner = h.az
	if err := assigner.AssignRole(ctx, 41, "member"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if ok, _ := h.az.HasRole(ctx, 41, "member"); !ok {
		t.Error("assigned role not held")
	}
}
