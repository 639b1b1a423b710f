package users

import (
	"context"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, tenantID int64) ([]User, error)
	GetUser(ctx context.Context, userID, tenantID int64) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns the tenant's users.
func (s *Service) ListUsers(ctx context.Context, tenantID int64) ([]User, error) {
	return s.repo.ListUsers(ctx, tenantID)
}

// GetUser returns one user scoped to the tenant.
func (s *Service) GetUser(ctx context.Context, userID, tenantID int64) (User, error) {
	return s.repo.GetUser(ctx, userID, tenantID)
}
