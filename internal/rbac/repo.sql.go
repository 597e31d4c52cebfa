package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akademika-id/akademika/internal/shared"
)

// Repository reads the grant graph. This package never writes role or
// permission tables; they are administered elsewhere.
type Repository interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	RolePermissions(ctx context.Context, roleID int64) ([]string, error)
	UserPermissions(ctx context.Context, userID int64) ([]string, error)
	UserGroupPermissions(ctx context.Context, userID int64) ([]string, error)
	RoleGroupPermissions(ctx context.Context, roleIDs []int64) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// PGRepository provides PostgreSQL backed reads over the grant graph.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetRole fetches a role including its parent linkage.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, parent_id, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.ParentID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// RolePermissions returns the names of permissions granted directly to a role.
func (r *PGRepository) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.name FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id WHERE rp.role_id = $1`,
		roleID)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// UserPermissions returns the names of permissions granted directly to a user.
func (r *PGRepository) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.name FROM user_permissions up JOIN permissions p ON p.id = up.permission_id WHERE up.user_id = $1`,
		userID)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// UserGroupPermissions returns permissions attached to user-kind groups the
// user is a member of.
func (r *PGRepository) UserGroupPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.name
		 FROM group_members gm
		 JOIN groups g ON g.id = gm.group_id AND g.kind = $2
		 JOIN group_permissions gp ON gp.group_id = g.id
		 JOIN permissions p ON p.id = gp.permission_id
		 WHERE gm.member_id = $1`,
		userID, GroupKindUser)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// RoleGroupPermissions returns permissions attached to role-kind groups that
// contain any of the given roles.
func (r *PGRepository) RoleGroupPermissions(ctx context.Context, roleIDs []int64) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT p.name
		 FROM group_members gm
		 JOIN groups g ON g.id = gm.group_id AND g.kind = $2
		 JOIN group_permissions gp ON gp.group_id = g.id
		 JOIN permissions p ON p.id = gp.permission_id
		 WHERE gm.member_id = ANY($1)`,
		roleIDs, GroupKindRole)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// ListPermissions returns all permissions ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, severity FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Severity); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func scanNames(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

var _ Repository = (*PGRepository)(nil)
