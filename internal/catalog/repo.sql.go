package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed read access to the permission catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListModules returns all modules ordered by sort order then name.
func (r *Repository) ListModules(ctx context.Context) ([]Module, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, name, category, sort_order, is_active FROM modules ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Slug, &m.Name, &m.Category, &m.SortOrder, &m.IsActive); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return modules, nil
}

// ListActions returns all actions ordered by sort order then name.
func (r *Repository) ListActions(ctx context.Context) ([]Action, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, name, sort_order FROM actions ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var actions []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.Slug, &a.Name, &a.SortOrder); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actions, nil
}

// ListPermissions returns every permission joined to its module and action
// labels, ordered by module then action sort order.
func (r *Repository) ListPermissions(ctx context.Context) ([]PermissionDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, m.slug, m.name, m.category, a.slug, a.name
		FROM permissions p
		JOIN modules m ON m.id = p.module_id
		JOIN actions a ON a.id = p.action_id
		ORDER BY m.sort_order, m.name, a.sort_order, a.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []PermissionDetail
	for rows.Next() {
		var p PermissionDetail
		if err := rows.Scan(&p.ID, &p.ModuleSlug, &p.ModuleName, &p.Category, &p.ActionSlug, &p.ActionName); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}
