package inmemory

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"

	"github.com/fortifygo/fortify/authz"
)

// RoleStore is a map-backed authz.RoleStore.
type RoleStore struct {
	mu    sync.RWMutex
	node  *snowflake.Node
	roles map[int64]*authz.Role

	// userRoles[userID] is the set of role IDs the user holds.
	userRoles map[int64]map[int64]struct{}
}

// NewRoleStore returns an empty role store.
func NewRoleStore() *RoleStore {
	return &RoleStore{
		node:      newNode(),
		roles:     make(map[int64]*authz.Role),
		userRoles: make(map[int64]map[int64]struct{}),
	}
}

var _ authz.RoleStore = (*RoleStore)(nil)

func (s *RoleStore) Create(_ context.Context, r *authz.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if !existing.Deleted && existing.Name == r.Name {
			return ErrDuplicate
		}
	}

	r.ID = s.node.Generate().Int64()
	c := *r
	s.roles[r.ID] = &c
	return nil
}

func (s *RoleStore) Update(_ context.Context, r *authz.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[r.ID]; !ok {
		return authz.ErrRoleNotFound
	}
	c := *r
	s.roles[r.ID] = &c
	return nil
}

func (s *RoleStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[id]
	if !ok {
		return authz.ErrRoleNotFound
	}
	r.Deleted = true
	return nil
}

func (s *RoleStore) FindByID(_ context.Context, id int64, includeDeleted bool) (*authz.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok || (r.Deleted && !includeDeleted) {
		return nil, authz.ErrRoleNotFound
	}
	c := *r
	return &c, nil
}

func (s *RoleStore) FindByName(_ context.Context, name string) (*authz.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if !r.Deleted && r.Name == name {
			c := *r
			return &c, nil
		}
	}
	return nil, authz.ErrRoleNotFound
}

func (s *RoleStore) List(_ context.Context, includeDeleted bool) ([]authz.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]authz.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if r.Deleted && !includeDeleted {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *RoleStore) AddUserRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return authz.ErrRoleNotFound
	}
	if s.userRoles[userID] == nil {
		s.userRoles[userID] = make(map[int64]struct{})
	}
	s.userRoles[userID][roleID] = struct{}{}
	return nil
}

func (s *RoleStore) RemoveUserRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.userRoles[userID], roleID)
	return nil
}

func (s *RoleStore) UserRoles(_ context.Context, userID int64) ([]authz.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []authz.Role
	for roleID := range s.userRoles[userID] {
		if r, ok := s.roles[roleID]; ok && !r.Deleted {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *RoleStore) DisconnectRole(_ context.Context, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID := range s.userRoles {
		delete(s.userRoles[userID], roleID)
	}
	return nil
}

// PermissionStore is a map-backed authz.PermissionStore.
type PermissionStore struct {
	mu    sync.RWMutex
	node  *snowflake.Node
	perms map[int64]*authz.Permission

	// userPerms[userID] and rolePerms[roleID] are sets of permission IDs.
	userPerms map[int64]map[int64]struct{}
	rolePerms map[int64]map[int64]struct{}
}

// NewPermissionStore returns an empty permission store.
func NewPermissionStore() *PermissionStore {
	return &PermissionStore{
		node:      newNode(),
		perms:     make(map[int64]*authz.Permission),
		userPerms: make(map[int64]map[int64]struct{}),
		rolePerms: make(map[int64]map[int64]struct{}),
	}
}

var _ authz.PermissionStore = (*PermissionStore)(nil)

func (s *PermissionStore) Create(_ context.Context, p *authz.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.perms {
		if !existing.Deleted && existing.Name == p.Name {
			return ErrDuplicate
		}
	}

	p.ID = s.node.Generate().Int64()
	c := *p
	s.perms[p.ID] = &c
	return nil
}

func (s *PermissionStore) Update(_ context.Context, p *authz.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.perms[p.ID]; !ok {
		return authz.ErrPermissionNotFound
	}
	c := *p
	s.perms[p.ID] = &c
	return nil
}

func (s *PermissionStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.perms[id]
	if !ok {
		return authz.ErrPermissionNotFound
	}
	p.Deleted = true
	return nil
}

func (s *PermissionStore) FindByID(_ context.Context, id int64, includeDeleted bool) (*authz.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.perms[id]
	if !ok || (p.Deleted && !includeDeleted) {
		return nil, authz.ErrPermissionNotFound
	}
	c := *p
	return &c, nil
}

func (s *PermissionStore) FindByName(_ context.Context, name string) (*authz.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.perms {
		if !p.Deleted && p.Name == name {
			c := *p
			return &c, nil
		}
	}
	return nil, authz.ErrPermissionNotFound
}

func (s *PermissionStore) List(_ context.Context, includeDeleted bool) ([]authz.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]authz.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		if p.Deleted && !includeDeleted {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *PermissionStore) AddUserPermission(_ context.Context, userID, permID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.perms[permID]; !ok {
		return authz.ErrPermissionNotFound
	}
	if s.userPerms[userID] == nil {
		s.userPerms[userID] = make(map[int64]struct{})
	}
	s.userPerms[userID][permID] = struct{}{}
	return nil
}

func (s *PermissionStore) RemoveUserPermission(_ context.Context, userID, permID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.userPerms[userID], permID)
	return nil
}

func (s *PermissionStore) UserPermissions(_ context.Context, userID int64) ([]authz.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permSet(s.userPerms[userID]), nil
}

func (s *PermissionStore) AddRolePermission(_ context.Context, roleID, permID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.perms[permID]; !ok {
		return authz.ErrPermissionNotFound
	}
	if s.rolePerms[roleID] == nil {
		s.rolePerms[roleID] = make(map[int64]struct{})
	}
	s.rolePerms[roleID][permID] = struct{}{}
	return nil
}

func (s *PermissionStore) RemoveRolePermission(_ context.Context, roleID, permID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rolePerms[roleID], permID)
	return nil
}

func (s *PermissionStore) RolePermissions(_ context.Context, roleID int64) ([]authz.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permSet(s.rolePerms[roleID]), nil
}

func (s *PermissionStore) DisconnectPermission(_ context.Context, permID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID := range s.userPerms {
		delete(s.userPerms[userID], permID)
	}
	for roleID := range s.rolePerms {
		delete(s.rolePerms[roleID], permID)
	}
	return nil
}

func (s *PermissionStore) DisconnectRole(_ context.Context, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rolePerms, roleID)
	return nil
}

// permSet materializes a permission ID set into live rows.  Caller holds
// at least the read lock.
func (s *PermissionStore) permSet(ids map[int64]struct{}) []authz.Permission {
	var out []authz.Permission
	for id := range ids {
		if p, ok := s.perms[id]; ok && !p.Deleted {
			out = append(out, *p)
		}
	}
	return out
}
