package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed permission resolution.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ResolvePermissions walks assignment→role→permission→module/action for all
// of the user's roles and returns the distinct (module, action) pairs.
// Inactive modules resolve to nothing.
func (r *Repository) ResolvePermissions(ctx context.Context, userID int64) ([]ModuleAction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT m.slug, a.slug
		FROM user_role_assignments ura
		JOIN role_permissions rp ON rp.role_id = ura.role_id
		JOIN permissions p ON p.id = rp.permission_id
		JOIN modules m ON m.id = p.module_id AND m.is_active
		JOIN actions a ON a.id = p.action_id
		WHERE ura.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []ModuleAction
	for rows.Next() {
		var g ModuleAction
		if err := rows.Scan(&g.ModuleSlug, &g.ActionSlug); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// HasPermission runs a single existence join rather than materializing the
// full permission map.
func (r *Repository) HasPermission(ctx context.Context, userID int64, moduleSlug, actionSlug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_role_assignments ura
			JOIN role_permissions rp ON rp.role_id = ura.role_id
			JOIN permissions p ON p.id = rp.permission_id
			JOIN modules m ON m.id = p.module_id AND m.is_active
			JOIN actions a ON a.id = p.action_id
			WHERE ura.user_id = $1 AND m.slug = $2 AND a.slug = $3
		)`, userID, moduleSlug, actionSlug).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

var _ RepositoryPort = (*Repository)(nil)
