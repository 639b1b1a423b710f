package assignments

import (
	"context"

	"github.com/stellarsoft-tech/idaraos/internal/roles"
)

// TxRepository exposes assignment persistence inside a transaction. LockUser
// must be called first; it serializes all role mutations for one user.
type TxRepository interface {
	LockUser(ctx context.Context, userID int64) error
	ListAssignments(ctx context.Context, userID int64) ([]Assignment, error)
	InsertAssignment(ctx context.Context, a Assignment) error
	ConvertToSync(ctx context.Context, userID, roleID int64, scimGroupID string) error
	DeleteAssignments(ctx context.Context, userID int64, roleIDs []int64) error
	DeleteManualAssignments(ctx context.Context, userID int64) error
	CountTenantRoles(ctx context.Context, tenantID int64, roleIDs []int64) (int, error)
}

// RepositoryPort defines data access methods for user role assignments.
type RepositoryPort interface {
	GetUserRoles(ctx context.Context, userID, tenantID int64) ([]UserRoleGrant, error)
	ListSyncUserIDs(ctx context.Context, tenantID int64) ([]int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// PolicyProvider reports the tenant's bidirectional directory-sync setting.
// Implemented by the directory package; false when no integration exists.
type PolicyProvider interface {
	BidirectionalSyncEnabled(ctx context.Context, tenantID int64) (bool, error)
}

// Service owns user→role assignment mutations: the admin replace-roles
// operation and the per-cycle directory-sync reconciliation.
type Service struct {
	repo     RepositoryPort
	policies PolicyProvider
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, policies PolicyProvider) *Service {
	return &Service{repo: repo, policies: policies}
}

// GetUserRoles lists the user's current role grants with their provenance.
func (s *Service) GetUserRoles(ctx context.Context, userID, tenantID int64) ([]UserRoleGrant, error) {
	return s.repo.GetUserRoles(ctx, userID, tenantID)
}

// ListSyncAssignedUserIDs lists users in the tenant who currently hold at
// least one directory-sourced role. The sync cycle uses it to find users the
// directory has stopped asserting entirely, so their sync grants get revoked.
func (s *Service) ListSyncAssignedUserIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	return s.repo.ListSyncUserIDs(ctx, tenantID)
}

// SetUserRoles replaces the user's manually assigned roles with the desired
// set. Sync-assigned roles are protected from removal unless the tenant has
// bidirectional sync enabled; a violation fails the whole operation with
// ErrSyncRolesProtected and writes nothing.
func (s *Service) SetUserRoles(ctx context.Context, userID, tenantID, actorID int64, desiredRoleIDs []int64) error {
	desired := dedupeIDs(desiredRoleIDs)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		if err := validateTenantRoles(ctx, tx, tenantID, desired); err != nil {
			return err
		}

		current, err := tx.ListAssignments(ctx, userID)
		if err != nil {
			return err
		}
		desiredSet := toSet(desired)
		syncHeld := make([]int64, 0, len(current))
		for _, a := range current {
			if a.Source == SourceSync {
				syncHeld = append(syncHeld, a.RoleID)
			}
		}

		// The policy is only consulted when the user actually holds
		// sync-sourced roles.
		syncKept := toSet(syncHeld)
		if len(syncHeld) > 0 {
			bidi, err := s.policies.BidirectionalSyncEnabled(ctx, tenantID)
			if err != nil {
				return err
			}
			var dropped []int64
			for _, roleID := range syncHeld {
				if _, ok := desiredSet[roleID]; !ok {
					dropped = append(dropped, roleID)
				}
			}
			if len(dropped) > 0 {
				if !bidi {
					return ErrSyncRolesProtected
				}
				if err := tx.DeleteAssignments(ctx, userID, dropped); err != nil {
					return err
				}
				for _, roleID := range dropped {
					delete(syncKept, roleID)
				}
			}
		}

		if err := tx.DeleteManualAssignments(ctx, userID); err != nil {
			return err
		}
		for _, roleID := range desired {
			if _, ok := syncKept[roleID]; ok {
				continue
			}
			actor := actorID
			if err := tx.InsertAssignment(ctx, Assignment{
				UserID:     userID,
				RoleID:     roleID,
				Source:     SourceManual,
				AssignedBy: &actor,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReconcileSyncRoles applies one directory-sync cycle for a user: roles no
// longer asserted by the directory lose their sync rows, newly asserted ones
// gain sync rows, and roles the user already held manually are converted to
// sync (the directory wins ties). Manual grants outside the desired set stay
// untouched. Idempotent for a fixed desired set.
func (s *Service) ReconcileSyncRoles(ctx context.Context, userID, tenantID int64, desiredSyncRoleIDs []int64, scimGroupID string) (ReconcileResult, error) {
	desired := dedupeIDs(desiredSyncRoleIDs)
	var result ReconcileResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result = ReconcileResult{}
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		if err := validateTenantRoles(ctx, tx, tenantID, desired); err != nil {
			return err
		}

		current, err := tx.ListAssignments(ctx, userID)
		if err != nil {
			return err
		}
		held := make(map[int64]Assignment, len(current))
		for _, a := range current {
			held[a.RoleID] = a
		}
		desiredSet := toSet(desired)

		var stale []int64
		for _, a := range current {
			if a.Source != SourceSync {
				continue
			}
			if _, ok := desiredSet[a.RoleID]; !ok {
				stale = append(stale, a.RoleID)
			}
		}
		if len(stale) > 0 {
			if err := tx.DeleteAssignments(ctx, userID, stale); err != nil {
				return err
			}
			result.Removed = len(stale)
		}

		for _, roleID := range desired {
			prior, ok := held[roleID]
			switch {
			case !ok:
				if err := tx.InsertAssignment(ctx, Assignment{
					UserID:      userID,
					RoleID:      roleID,
					Source:      SourceSync,
					SCIMGroupID: scimGroupID,
				}); err != nil {
					return err
				}
				result.Added++
			case prior.Source == SourceManual || prior.SCIMGroupID != scimGroupID:
				if err := tx.ConvertToSync(ctx, userID, roleID, scimGroupID); err != nil {
					return err
				}
				if prior.Source == SourceManual {
					result.Converted++
				}
			}
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return result, nil
}

func validateTenantRoles(ctx context.Context, tx TxRepository, tenantID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	count, err := tx.CountTenantRoles(ctx, tenantID, roleIDs)
	if err != nil {
		return err
	}
	if count != len(roleIDs) {
		return roles.ErrRoleNotFound
	}
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
