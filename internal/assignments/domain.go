package assignments

import (
	"errors"
	"time"
)

// ErrSyncRolesProtected indicates an attempt to unassign directory-sourced
// roles through the manual surface while bidirectional sync is off.
var ErrSyncRolesProtected = errors.New("assignments: sync-assigned roles protected")

// Source identifies which mechanism asserted a role grant.
type Source string

const (
	// SourceManual marks grants made by an administrator.
	SourceManual Source = "manual"
	// SourceSync marks grants asserted by directory synchronization.
	SourceSync Source = "sync"
)

// Assignment is one user→role grant. At most one row exists per
// (UserID, RoleID); the Source reflects whichever mechanism most recently
// asserted the grant.
type Assignment struct {
	UserID      int64     `json:"user_id"`
	RoleID      int64     `json:"role_id"`
	Source      Source    `json:"source"`
	AssignedBy  *int64    `json:"assigned_by,omitempty"`
	SCIMGroupID string    `json:"scim_group_id,omitempty"`
	AssignedAt  time.Time `json:"assigned_at"`
}

// UserRoleGrant is an assignment joined with its role labels, the shape the
// admin UI lists.
type UserRoleGrant struct {
	RoleID      int64     `json:"role_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	IsSystem    bool      `json:"is_system"`
	Source      Source    `json:"source"`
	SCIMGroupID string    `json:"scim_group_id,omitempty"`
	AssignedAt  time.Time `json:"assigned_at"`
}

// ReconcileResult reports what a sync reconciliation changed.
type ReconcileResult struct {
	Added     int
	Converted int
	Removed   int
}

// Changed reports whether the reconciliation mutated any assignment.
func (r ReconcileResult) Changed() bool {
	return r.Added > 0 || r.Converted > 0 || r.Removed > 0
}
