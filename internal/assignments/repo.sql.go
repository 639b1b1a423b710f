package assignments

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stellarsoft-tech/idaraos/internal/platform/db"
	"github.com/stellarsoft-tech/idaraos/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUserRoles lists the user's grants joined with role labels, system roles
// first then by role name.
func (r *Repository) GetUserRoles(ctx context.Context, userID, tenantID int64) ([]UserRoleGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ura.role_id, r.slug, r.name, r.color, r.is_system,
		       ura.source, COALESCE(ura.scim_group_id, ''), ura.assigned_at
		FROM user_role_assignments ura
		JOIN roles r ON r.id = ura.role_id
		WHERE ura.user_id = $1 AND r.tenant_id = $2
		ORDER BY r.is_system DESC, r.name`, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []UserRoleGrant
	for rows.Next() {
		var g UserRoleGrant
		if err := rows.Scan(&g.RoleID, &g.Slug, &g.Name, &g.Color, &g.IsSystem,
			&g.Source, &g.SCIMGroupID, &g.AssignedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// ListSyncUserIDs lists users holding at least one sync-sourced assignment
// for a role in the tenant.
func (r *Repository) ListSyncUserIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ura.user_id
		FROM user_role_assignments ura
		JOIN roles r ON r.id = ura.role_id
		WHERE ura.source = 'sync' AND r.tenant_id = $1
		ORDER BY ura.user_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return userIDs, nil
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

// LockUser takes the per-user advisory lock for the remainder of the
// transaction, serializing concurrent role mutations for the same user.
func (t *txRepository) LockUser(ctx context.Context, userID int64) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, shared.AssignmentLockKey(userID))
	return err
}

func (t *txRepository) ListAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT user_id, role_id, source, assigned_by, COALESCE(scim_group_id, ''), assigned_at
		FROM user_role_assignments
		WHERE user_id = $1
		ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.Source, &a.AssignedBy, &a.SCIMGroupID, &a.AssignedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (t *txRepository) InsertAssignment(ctx context.Context, a Assignment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_role_assignments (user_id, role_id, source, assigned_by, scim_group_id, assigned_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())`,
		a.UserID, a.RoleID, a.Source, a.AssignedBy, a.SCIMGroupID)
	return err
}

// ConvertToSync flips an existing row to directory provenance. The original
// assigned_at is kept; assigned_by is cleared because the directory is now
// the authority for the grant.
func (t *txRepository) ConvertToSync(ctx context.Context, userID, roleID int64, scimGroupID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE user_role_assignments
		SET source = 'sync', assigned_by = NULL, scim_group_id = NULLIF($3, '')
		WHERE user_id = $1 AND role_id = $2`, userID, roleID, scimGroupID)
	return err
}

func (t *txRepository) DeleteAssignments(ctx context.Context, userID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM user_role_assignments WHERE user_id = $1 AND role_id = ANY($2)`, userID, roleIDs)
	return err
}

func (t *txRepository) DeleteManualAssignments(ctx context.Context, userID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM user_role_assignments WHERE user_id = $1 AND source = 'manual'`, userID)
	return err
}

func (t *txRepository) CountTenantRoles(ctx context.Context, tenantID int64, roleIDs []int64) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, roleIDs).Scan(&count)
	return count, err
}

var _ RepositoryPort = (*Repository)(nil)
var _ TxRepository = (*txRepository)(nil)
