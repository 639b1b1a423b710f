package directory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLProvider derives per-user desired role sets from the synced SCIM group
// membership and group→role mapping tables. It stands in for a live SCIM
// endpoint: the sync agent lands raw group data in these tables and the
// provider computes the role assertions from them.
type SQLProvider struct {
	pool *pgxpool.Pool
}

// NewSQLProvider constructs a provider over the synced directory tables.
func NewSQLProvider(pool *pgxpool.Pool) *SQLProvider {
	return &SQLProvider{pool: pool}
}

// FetchUserSyncs returns one tuple per member of any mapped group: the union
// of role ids across the user's groups, attributed to the first group by id.
func (p *SQLProvider) FetchUserSyncs(ctx context.Context, tenantID int64) ([]UserSync, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT sgm.user_id, sgr.role_id, sg.external_id
		FROM scim_group_members sgm
		JOIN scim_groups sg ON sg.id = sgm.group_id AND sg.tenant_id = $1
		JOIN scim_group_roles sgr ON sgr.group_id = sgm.group_id
		ORDER BY sgm.user_id, sg.id, sgr.role_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		syncs   []UserSync
		current *UserSync
	)
	for rows.Next() {
		var (
			userID  int64
			roleID  int64
			groupID string
		)
		if err := rows.Scan(&userID, &roleID, &groupID); err != nil {
			return nil, err
		}
		if current == nil || current.UserID != userID {
			syncs = append(syncs, UserSync{UserID: userID, SCIMGroupID: groupID})
			current = &syncs[len(syncs)-1]
		}
		if !containsID(current.DesiredSyncRoleIDs, roleID) {
			current.DesiredSyncRoleIDs = append(current.DesiredSyncRoleIDs, roleID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return syncs, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

var _ Provider = (*SQLProvider)(nil)
