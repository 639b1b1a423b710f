package catalog

import (
	"context"
)

// RepositoryPort defines read access to the permission catalog.
type RepositoryPort interface {
	ListModules(ctx context.Context) ([]Module, error)
	ListActions(ctx context.Context) ([]Action, error)
	ListPermissions(ctx context.Context) ([]PermissionDetail, error)
}

// Service exposes the fixed module/action/permission vocabulary. Read-only at
// runtime; the seeder is the only writer.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListModules returns all modules.
func (s *Service) ListModules(ctx context.Context) ([]Module, error) {
	return s.repo.ListModules(ctx)
}

// ListActions returns all actions.
func (s *Service) ListActions(ctx context.Context) ([]Action, error) {
	return s.repo.ListActions(ctx)
}

// ListPermissions returns all permissions with module and action labels.
func (s *Service) ListPermissions(ctx context.Context) ([]PermissionDetail, error) {
	return s.repo.ListPermissions(ctx)
}
