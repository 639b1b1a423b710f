package rbac

import (
	"context"
	"log/slog"

	"github.com/stellarsoft-tech/idaraos/internal/observability"
	"github.com/stellarsoft-tech/idaraos/internal/shared"
)

// RepositoryPort defines the permission-resolution joins.
type RepositoryPort interface {
	ResolvePermissions(ctx context.Context, userID int64) ([]ModuleAction, error)
	HasPermission(ctx context.Context, userID int64, moduleSlug, actionSlug string) (bool, error)
}

// Service answers permission questions by walking assignment→role→permission
// joins. It holds no state between calls; every check observes the current
// store.
type Service struct {
	repo    RepositoryPort
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService builds Service instance. Metrics may be nil.
func NewService(repo RepositoryPort, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, logger: logger, metrics: metrics}
}

// ResolveUserPermissions computes the user's effective permission map across
// all of their roles, regardless of assignment source. A user with no role
// assignments resolves to an empty map.
func (s *Service) ResolveUserPermissions(ctx context.Context, userID int64) (PermissionMap, error) {
	rows, err := s.repo.ResolvePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms := make(PermissionMap, len(rows))
	for _, row := range rows {
		perms.Add(row.ModuleSlug, row.ActionSlug)
	}
	return perms, nil
}

// HasPermission reports whether the user holds (module, action) via any role.
func (s *Service) HasPermission(ctx context.Context, userID int64, moduleSlug, actionSlug string) (bool, error) {
	return s.repo.HasPermission(ctx, userID, moduleSlug, actionSlug)
}

// HasAnyPermission short-circuits to true on the first action the user holds
// within the module.
func (s *Service) HasAnyPermission(ctx context.Context, userID int64, moduleSlug string, actionSlugs ...string) (bool, error) {
	for _, action := range actionSlugs {
		ok, err := s.repo.HasPermission(ctx, userID, moduleSlug, action)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions short-circuits to false on the first missing action.
func (s *Service) HasAllPermissions(ctx context.Context, userID int64, moduleSlug string, actionSlugs ...string) (bool, error) {
	for _, action := range actionSlugs {
		ok, err := s.repo.HasPermission(ctx, userID, moduleSlug, action)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// RequirePermission is the single gate protected operations call. It fails
// with shared.ErrUnauthenticated when the session carries no user, with
// shared.ErrForbidden when the permission is absent, and returns the session
// unchanged on success so callers can read the tenant id. Fail-closed: a
// resolver error is Forbidden, never allowed.
func (s *Service) RequirePermission(ctx context.Context, sess *shared.Session, moduleSlug, actionSlug string) (*shared.Session, error) {
	if !sess.Authenticated() {
		s.metrics.RecordPermissionCheck(false)
		return nil, shared.ErrUnauthenticated
	}
	ok, err := s.repo.HasPermission(ctx, sess.UserID(), moduleSlug, actionSlug)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("permission check failed closed",
				slog.Int64("user_id", sess.UserID()),
				slog.String("module", moduleSlug),
				slog.String("action", actionSlug),
				slog.Any("error", err))
		}
		s.metrics.RecordPermissionCheck(false)
		return nil, shared.ErrForbidden
	}
	s.metrics.RecordPermissionCheck(ok)
	if !ok {
		return nil, shared.ErrForbidden
	}
	return sess, nil
}
