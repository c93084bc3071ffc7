package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/jmoiron/sqlx"

	"github.com/fortifygo/fortify/authz"
)

// RoleStore is a PostgreSQL-backed authz.RoleStore.
type RoleStore struct {
	db   *sqlx.DB
	node *snowflake.Node
}

// NewRoleStore wires a role store over db.
func NewRoleStore(db *sqlx.DB, nodeID int64) (*RoleStore, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: snowflake node: %w", err)
	}
	return &RoleStore{db: db, node: node}, nil
}

var _ authz.RoleStore = (*RoleStore)(nil)

type roleRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Label     string `db:"label"`
	Deleted   bool   `db:"deleted"`
	CreatorID int64  `db:"creator_id"`
}

func (r roleRow) toRole() authz.Role {
	return authz.Role{ID: r.ID, Name: r.Name, Label: r.Label, Deleted: r.Deleted, CreatorID: r.CreatorID}
}

func (s *RoleStore) Create(ctx context.Context, r *authz.Role) error {
	r.ID = s.node.Generate().Int64()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, label, deleted, creator_id) VALUES ($1, $2, $3, FALSE, $4)`,
		r.ID, r.Name, r.Label, r.CreatorID)
	if err != nil {
		r.ID = 0
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres: create role: %w", err)
	}
	return nil
}

func (s *RoleStore) Update(ctx context.Context, r *authz.Role) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE roles SET name = $1, label = $2, deleted = $3 WHERE id = $4`,
		r.Name, r.Label, r.Deleted, r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres: update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

func (s *RoleStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE roles SET deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

func (s *RoleStore) FindByID(ctx context.Context, id int64, includeDeleted bool) (*authz.Role, error) {
	query := `SELECT * FROM roles WHERE id = $1`
	if !includeDeleted {
		query += ` AND NOT deleted`
	}

	var row roleRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("postgres: find role: %w", err)
	}
	role := row.toRole()
	return &role, nil
}

func (s *RoleStore) FindByName(ctx context.Context, name string) (*authz.Role, error) {
	var row roleRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM roles WHERE name = $1 AND NOT deleted`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("postgres: find role: %w", err)
	}
	role := row.toRole()
	return &role, nil
}

func (s *RoleStore) List(ctx context.Context, includeDeleted bool) ([]authz.Role, error) {
	query := `SELECT * FROM roles`
	if !includeDeleted {
		query += ` WHERE NOT deleted`
	}
	query += ` ORDER BY name`

	var rows []roleRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("postgres: list roles: %w", err)
	}
	out := make([]authz.Role, len(rows))
	for i, r := range rows {
		out[i] = r.toRole()
	}
	return out, nil
}

func (s *RoleStore) AddUserRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID)
	if err != nil {
		return fmt.Errorf("postgres: add user role: %w", err)
	}
	return nil
}

func (s *RoleStore) RemoveUserRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("postgres: remove user role: %w", err)
	}
	return nil
}

func (s *RoleStore) UserRoles(ctx context.Context, userID int64) ([]authz.Role, error) {
	var rows []roleRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT r.* FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND NOT r.deleted
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: user roles: %w", err)
	}
	out := make([]authz.Role, len(rows))
	for i, r := range rows {
		out[i] = r.toRole()
	}
	return out, nil
}

func (s *RoleStore) DisconnectRole(ctx context.Context, roleID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_roles WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("postgres: disconnect role: %w", err)
	}
	return nil
}

// PermissionStore is a PostgreSQL-backed authz.PermissionStore.
type PermissionStore struct {
	db   *sqlx.DB
	node *snowflake.Node
}

// NewPermissionStore wires a permission store over db.
func NewPermissionStore(db *sqlx.DB, nodeID int64) (*PermissionStore, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: snowflake node: %w", err)
	}
	return &PermissionStore{db: db, node: node}, nil
}

var _ authz.PermissionStore = (*PermissionStore)(nil)

type permRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Label     string `db:"label"`
	Deleted   bool   `db:"deleted"`
	CreatorID int64  `db:"creator_id"`
}

func (r permRow) toPermission() authz.Permission {
	return authz.Permission{ID: r.ID, Name: r.Name, Label: r.Label, Deleted: r.Deleted, CreatorID: r.CreatorID}
}

func (s *PermissionStore) Create(ctx context.Context, p *authz.Permission) error {
	p.ID = s.node.Generate().Int64()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO permissions (id, name, label, deleted, creator_id) VALUES ($1, $2, $3, FALSE, $4)`,
		p.ID, p.Name, p.Label, p.CreatorID)
	if err != nil {
		p.ID = 0
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres: create permission: %w", err)
	}
	return nil
}

func (s *PermissionStore) Update(ctx context.Context, p *authz.Permission) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE permissions SET name = $1, label = $2, deleted = $3 WHERE id = $4`,
		p.Name, p.Label, p.Deleted, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres: update permission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authz.ErrPermissionNotFound
	}
	return nil
}

func (s *PermissionStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE permissions SET deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete permission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authz.ErrPermissionNotFound
	}
	return nil
}

func (s *PermissionStore) FindByID(ctx context.Context, id int64, includeDeleted bool) (*authz.Permission, error) {
	query := `SELECT * FROM permissions WHERE id = $1`
	if !includeDeleted {
		query += ` AND NOT deleted`
	}

	var row permRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrPermissionNotFound
		}
		return nil, fmt.Errorf("postgres: find permission: %w", err)
	}
	perm := row.toPermission()
	return &perm, nil
}

func (s *PermissionStore) FindByName(ctx context.Context, name string) (*authz.Permission, error) {
	var row permRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM permissions WHERE name = $1 AND NOT deleted`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrPermissionNotFound
		}
		return nil, fmt.Errorf("postgres: find permission: %w", err)
	}
	perm := row.toPermission()
	return &perm, nil
}

func (s *PermissionStore) List(ctx context.Context, includeDeleted bool) ([]authz.Permission, error) {
	query := `SELECT * FROM permissions`
	if !includeDeleted {
		query += ` WHERE NOT deleted`
	}
	query += ` ORDER BY name`

	var rows []permRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("postgres: list permissions: %w", err)
	}
	out := make([]authz.Permission, len(rows))
	for i, r := range rows {
		out[i] = r.toPermission()
	}
	return out, nil
}

func (s *PermissionStore) AddUserPermission(ctx context.Context, userID, permID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_permissions (user_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, permID)
	if err != nil {
		return fmt.Errorf("postgres: add user permission: %w", err)
	}
	return nil
}

func (s *PermissionStore) RemoveUserPermission(ctx context.Context, userID, permID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, permID)
	if err != nil {
		return fmt.Errorf("postgres: remove user permission: %w", err)
	}
	return nil
}

func (s *PermissionStore) UserPermissions(ctx context.Context, userID int64) ([]authz.Permission, error) {
	var rows []permRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.* FROM permissions p
		JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1 AND NOT p.deleted
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: user permissions: %w", err)
	}
	out := make([]authz.Permission, len(rows))
	for i, r := range rows {
		out[i] = r.toPermission()
	}
	return out, nil
}

func (s *PermissionStore) AddRolePermission(ctx context.Context, roleID, permID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permID)
	if err != nil {
		return fmt.Errorf("postgres: add role permission: %w", err)
	}
	return nil
}

func (s *PermissionStore) RemoveRolePermission(ctx context.Context, roleID, permID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permID)
	if err != nil {
		return fmt.Errorf("postgres: remove role permission: %w", err)
	}
	return nil
}

func (s *PermissionStore) RolePermissions(ctx context.Context, roleID int64) ([]authz.Permission, error) {
	var rows []permRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.* FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1 AND NOT p.deleted
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: role permissions: %w", err)
	}
	out := make([]authz.Permission, len(rows))
	for i, r := range rows {
		out[i] = r.toPermission()
	}
	return out, nil
}

func (s *PermissionStore) DisconnectPermission(ctx context.Context, permID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_permissions WHERE permission_id = $1`, permID); err != nil {
		return fmt.Errorf("postgres: disconnect permission: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, permID); err != nil {
		return fmt.Errorf("postgres: disconnect permission: %w", err)
	}
	return nil
}

func (s *PermissionStore) DisconnectRole(ctx context.Context, roleID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("postgres: disconnect role: %w", err)
	}
	return nil
}
