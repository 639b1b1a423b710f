package directory

import "time"

// Integration is a tenant's directory-provider configuration. One row per
// tenant per provider; reconciliation behavior follows its flags.
type Integration struct {
	ID                int64     `json:"id"`
	TenantID          int64     `json:"tenant_id"`
	Provider          string    `json:"provider"`
	Enabled           bool      `json:"enabled"`
	BidirectionalSync bool      `json:"bidirectional_sync"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UserSync is one per-cycle tuple from the directory provider: the roles this
// user should hold based on external group membership, and the group that
// produced them.
type UserSync struct {
	UserID             int64
	DesiredSyncRoleIDs []int64
	SCIMGroupID        string
}

// CycleStats summarizes one tenant sync cycle.
type CycleStats struct {
	Users     int
	Added     int
	Converted int
	Removed   int
	Failed    int
}
