package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// GetIntegration fetches the tenant's directory integration.
func (r *Repository) GetIntegration(ctx context.Context, tenantID int64) (Integration, error) {
	var integ Integration
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, provider, enabled, scim_bidirectional_sync, created_at, updated_at
		FROM directory_integrations WHERE tenant_id = $1`, tenantID).
		Scan(&integ.ID, &integ.TenantID, &integ.Provider, &integ.Enabled, &integ.BidirectionalSync, &integ.CreatedAt, &integ.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Integration{}, shared.ErrNotFound
		}
		return Integration{}, err
	}
	return integ, nil
}

// BidirectionalSyncEnabled reports the tenant's bidirectional-sync flag.
// Tenants without a directory integration default to false.
func (r *Repository) BidirectionalSyncEnabled(ctx context.Context, tenantID int64) (bool, error) {
	integ, err := r.GetIntegration(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return integ.BidirectionalSync, nil
}

// ListEnabledTenantIDs returns tenants whose directory sync is switched on.
func (r *Repository) ListEnabledTenantIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT tenant_id FROM directory_integrations WHERE enabled ORDER BY tenant_id`)
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
