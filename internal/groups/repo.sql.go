package groups

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akademika-id/akademika/internal/platform/db"
	"github.com/akademika-id/akademika/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListGroups returns all groups ordered by name.
func (r *Repository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, kind, created_at FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Kind, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateGroup inserts a new group. Duplicate names map to ErrDuplicate.
func (r *Repository) CreateGroup(ctx context.Context, name, kind string) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx,
		`INSERT INTO groups (name, kind, created_at) VALUES ($1, $2, now()) RETURNING id, name, kind, created_at`,
		name, kind).Scan(&g.ID, &g.Name, &g.Kind, &g.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Group{}, shared.ErrDuplicate
		}
		return Group{}, err
	}
	return g, nil
}

// DeleteGroup removes a group together with its membership and grant edges
// in one transaction.
func (r *Repository) DeleteGroup(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM group_permissions WHERE group_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// GetGroup fetches a single group.
func (r *Repository) GetGroup(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT id, name, kind, created_at FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.Kind, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, shared.ErrNotFound
		}
		return Group{}, err
	}
	return g, nil
}

// AddMember attaches a member; re-adding is idempotent.
func (r *Repository) AddMember(ctx context.Context, groupID, memberID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_members (group_id, member_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		groupID, memberID)
	return err
}

// RemoveMember detaches a member.
func (r *Repository) RemoveMember(ctx context.Context, groupID, memberID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND member_id = $2`, groupID, memberID)
	return err
}

// ListMembers returns member ids for a group.
func (r *Repository) ListMembers(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT member_id FROM group_members WHERE group_id = $1 ORDER BY member_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// AttachPermission grants a permission to every member of the group.
func (r *Repository) AttachPermission(ctx context.Context, groupID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_permissions (group_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		groupID, permissionID)
	return err
}

// DetachPermission revokes a group grant.
func (r *Repository) DetachPermission(ctx context.Context, groupID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM group_permissions WHERE group_id = $1 AND permission_id = $2`, groupID, permissionID)
	return err
}

// ListPermissions returns permission names granted through the group.
func (r *Repository) ListPermissions(ctx context.Context, groupID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.name FROM group_permissions gp JOIN permissions p ON p.id = gp.permission_id WHERE gp.group_id = $1 ORDER BY p.name`,
		groupID)
	if err != nil {
		return nil, err
	}
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
