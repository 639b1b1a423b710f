package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stellarsoft-tech/idaraos/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns the tenant's roles with live counts, system roles first.
func (r *Repository) ListRoles(ctx context.Context, tenantID int64) ([]RoleSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.tenant_id, r.slug, r.name, r.description, r.color,
		       r.is_system, r.is_default, r.created_at, r.updated_at,
		       (SELECT COUNT(*) FROM role_permissions rp WHERE rp.role_id = r.id),
		       (SELECT COUNT(*) FROM user_role_assignments ura WHERE ura.role_id = r.id)
		FROM roles r
		WHERE r.tenant_id = $1
		ORDER BY r.is_system DESC, r.name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var summaries []RoleSummary
	for rows.Next() {
		var s RoleSummary
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Slug, &s.Name, &s.Description, &s.Color,
			&s.IsSystem, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt,
			&s.PermissionCount, &s.UserCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetRole fetches a role by id within the tenant.
func (r *Repository) GetRole(ctx context.Context, roleID, tenantID int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, slug, name, description, color, is_system, is_default, created_at, updated_at
		FROM roles WHERE id = $1 AND tenant_id = $2`, roleID, tenantID))
}

// GetRolePermissionIDs returns the ids of the permissions granted to a role.
func (r *Repository) GetRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1 ORDER BY permission_id`, roleID)
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

// WithTx runs fn against a transactional repository view.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) InsertRole(ctx context.Context, role Role) (Role, error) {
	created, err := scanRole(t.tx.QueryRow(ctx, `
		INSERT INTO roles (tenant_id, slug, name, description, color, is_system, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, tenant_id, slug, name, description, color, is_system, is_default, created_at, updated_at`,
		role.TenantID, role.Slug, role.Name, role.Description, role.Color, role.IsSystem, role.IsDefault))
	if err != nil {
		return Role{}, mapSlugConflict(err)
	}
	return created, nil
}

func (t *txRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	updated, err := scanRole(t.tx.QueryRow(ctx, `
		UPDATE roles SET slug = $1, name = $2, description = $3, color = $4, updated_at = NOW()
		WHERE id = $5 AND tenant_id = $6
		RETURNING id, tenant_id, slug, name, description, color, is_system, is_default, created_at, updated_at`,
		role.Slug, role.Name, role.Description, role.Color, role.ID, role.TenantID))
	if err != nil {
		return Role{}, mapSlugConflict(err)
	}
	return updated, nil
}

func (t *txRepository) GetRoleForUpdate(ctx context.Context, roleID, tenantID int64) (Role, error) {
	return scanRole(t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, slug, name, description, color, is_system, is_default, created_at, updated_at
		FROM roles WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, roleID, tenantID))
}

func (t *txRepository) CountPermissions(ctx context.Context, permissionIDs []int64) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE id = ANY($1)`, permissionIDs).Scan(&count)
	return count, err
}

func (t *txRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionIDs)
	return err
}

func (t *txRepository) DeleteRole(ctx context.Context, roleID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM user_role_assignments WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	return err
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.TenantID, &role.Slug, &role.Name, &role.Description, &role.Color,
		&role.IsSystem, &role.IsDefault, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// mapSlugConflict translates the unique (tenant_id, slug) violation into the
// domain error.
func mapSlugConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateSlug
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
var _ TxRepository = (*txRepository)(nil)
