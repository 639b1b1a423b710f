package roles

import (
	"context"
	"strings"
)

// TxRepository exposes role persistence inside a transaction.
type TxRepository interface {
	InsertRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	GetRoleForUpdate(ctx context.Context, roleID, tenantID int64) (Role, error)
	CountPermissions(ctx context.Context, permissionIDs []int64) (int, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DeleteRole(ctx context.Context, roleID int64) error
}

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context, tenantID int64) ([]RoleSummary, error)
	GetRole(ctx context.Context, roleID, tenantID int64) (Role, error)
	GetRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// CreateRoleInput carries the fields for a new role.
type CreateRoleInput struct {
	Name          string
	Description   string
	Color         string
	PermissionIDs []int64
}

// UpdateRolePatch carries partial edits. Nil pointers leave the field alone;
// a nil PermissionIDs slice leaves the grant set, a non-nil one replaces it
// wholesale.
type UpdateRolePatch struct {
	Name          *string
	Description   *string
	Color         *string
	PermissionIDs []int64
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns the tenant's roles, system roles first then by name, each
// annotated with permission and assigned-user counts.
func (s *Service) ListRoles(ctx context.Context, tenantID int64) ([]RoleSummary, error) {
	return s.repo.ListRoles(ctx, tenantID)
}

// GetRole returns a single role with its granted permission ids.
func (s *Service) GetRole(ctx context.Context, roleID, tenantID int64) (RoleDetail, error) {
	role, err := s.repo.GetRole(ctx, roleID, tenantID)
	if err != nil {
		return RoleDetail{}, err
	}
	permIDs, err := s.repo.GetRolePermissionIDs(ctx, roleID)
	if err != nil {
		return RoleDetail{}, err
	}
	return RoleDetail{Role: role, PermissionIDs: permIDs}, nil
}

// CreateRole persists a new custom role and its permission grants. The slug
// is derived from the name; a clash within the tenant fails with
// ErrDuplicateSlug before any grant is written.
func (s *Service) CreateRole(ctx context.Context, tenantID int64, input CreateRoleInput) (Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Role{}, ErrNameRequired
	}
	role := Role{
		TenantID:    tenantID,
		Slug:        Slugify(name),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Color:       strings.TrimSpace(input.Color),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := validatePermissionIDs(ctx, tx, input.PermissionIDs); err != nil {
			return err
		}
		created, err := tx.InsertRole(ctx, role)
		if err != nil {
			return err
		}
		role = created
		return tx.ReplaceRolePermissions(ctx, role.ID, input.PermissionIDs)
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpdateRole applies a patch to an existing role. Built-in roles silently
// ignore name, description, and color edits; only their grant set may change.
// Renaming regenerates the slug. A supplied PermissionIDs slice replaces the
// whole grant set.
func (s *Service) UpdateRole(ctx context.Context, roleID, tenantID int64, patch UpdateRolePatch) (Role, error) {
	var updated Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.GetRoleForUpdate(ctx, roleID, tenantID)
		if err != nil {
			return err
		}
		if !role.IsSystem {
			if patch.Name != nil {
				name := strings.TrimSpace(*patch.Name)
				if name == "" {
					return ErrNameRequired
				}
				role.Name = name
				role.Slug = Slugify(name)
			}
			if patch.Description != nil {
				role.Description = strings.TrimSpace(*patch.Description)
			}
			if patch.Color != nil {
				role.Color = strings.TrimSpace(*patch.Color)
			}
		}
		role, err = tx.UpdateRole(ctx, role)
		if err != nil {
			return err
		}
		if patch.PermissionIDs != nil {
			if err := validatePermissionIDs(ctx, tx, patch.PermissionIDs); err != nil {
				return err
			}
			if err := tx.ReplaceRolePermissions(ctx, role.ID, patch.PermissionIDs); err != nil {
				return err
			}
		}
		updated = role
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return updated, nil
}

// DeleteRole removes a custom role, cascading to its permission grants and
// user assignments. Built-in roles cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, roleID, tenantID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.GetRoleForUpdate(ctx, roleID, tenantID)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return ErrSystemRoleImmutable
		}
		return tx.DeleteRole(ctx, role.ID)
	})
}

func validatePermissionIDs(ctx context.Context, tx TxRepository, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	count, err := tx.CountPermissions(ctx, ids)
	if err != nil {
		return err
	}
	if count != len(dedupeIDs(ids)) {
		return ErrPermissionNotFound
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
