package directory

import (
	"context"
	"errors"
	"sync"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stellarsoft-tech/idaraos/internal/assignments"
	"github.com/stellarsoft-tech/idaraos/internal/observability"
	"github.com/stellarsoft-tech/idaraos/internal/shared"
)

// Per-cycle fan-out across users. Each user reconciles in its own
// transaction, so concurrency here never widens a transaction's scope.
const syncConcurrency = 4

// Provider is the external directory collaborator: it computes, per cycle,
// which roles each user should hold based on group membership.
type Provider interface {
	FetchUserSyncs(ctx context.Context, tenantID int64) ([]UserSync, error)
}

// Reconciler applies one user's desired sync role set and reports which
// users currently hold sync-sourced grants.
type Reconciler interface {
	ReconcileSyncRoles(ctx context.Context, userID, tenantID int64, desiredSyncRoleIDs []int64, scimGroupID string) (assignments.ReconcileResult, error)
	ListSyncAssignedUserIDs(ctx context.Context, tenantID int64) ([]int64, error)
}

// RepositoryPort defines data access for directory integrations.
type RepositoryPort interface {
	GetIntegration(ctx context.Context, tenantID int64) (Integration, error)
	ListEnabledTenantIDs(ctx context.Context) ([]int64, error)
}

// Service runs directory-sync cycles, feeding provider tuples through the
// assignment reconciler.
type Service struct {
	repo       RepositoryPort
	provider   Provider
	reconciler Reconciler
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewService builds Service instance. Metrics may be nil.
func NewService(repo RepositoryPort, provider Provider, reconciler Reconciler, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, provider: provider, reconciler: reconciler, logger: logger, metrics: metrics}
}

// GetIntegration exposes the tenant's integration config.
func (s *Service) GetIntegration(ctx context.Context, tenantID int64) (Integration, error) {
	return s.repo.GetIntegration(ctx, tenantID)
}

// SyncTenant runs one full cycle for a tenant. Tenants without an enabled
// integration are skipped. Individual user failures are counted and logged
// but do not abort the rest of the cycle.
func (s *Service) SyncTenant(ctx context.Context, tenantID int64) (CycleStats, error) {
	integ, err := s.repo.GetIntegration(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return CycleStats{}, nil
		}
		return CycleStats{}, err
	}
	if !integ.Enabled {
		return CycleStats{}, nil
	}

	tuples, err := s.provider.FetchUserSyncs(ctx, tenantID)
	if err != nil {
		return CycleStats{}, err
	}

	// Users the directory no longer asserts at all produce no tuple, yet
	// their sync grants must still be revoked. Reconcile them against an
	// empty desired set.
	asserted := make(map[int64]struct{}, len(tuples))
	for _, tuple := range tuples {
		asserted[tuple.UserID] = struct{}{}
	}
	syncUserIDs, err := s.reconciler.ListSyncAssignedUserIDs(ctx, tenantID)
	if err != nil {
		return CycleStats{}, err
	}
	for _, userID := range syncUserIDs {
		if _, ok := asserted[userID]; !ok {
			tuples = append(tuples, UserSync{UserID: userID})
		}
	}

	var (
		mu    sync.Mutex
		stats = CycleStats{Users: len(tuples)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for _, tuple := range tuples {
		g.Go(func() error {
			result, err := s.reconciler.ReconcileSyncRoles(gctx, tuple.UserID, tenantID, tuple.DesiredSyncRoleIDs, tuple.SCIMGroupID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				s.metrics.RecordSyncRun("failed")
				if s.logger != nil {
					s.logger.Error("reconcile user sync roles",
						slog.Int64("tenant_id", tenantID),
						slog.Int64("user_id", tuple.UserID),
						slog.Any("error", err))
				}
				return nil
			}
			stats.Added += result.Added
			stats.Converted += result.Converted
			stats.Removed += result.Removed
			if result.Changed() {
				s.metrics.RecordSyncRun("changed")
			} else {
				s.metrics.RecordSyncRun("unchanged")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// SyncAll runs a cycle for every tenant with an enabled integration.
func (s *Service) SyncAll(ctx context.Context) error {
	tenantIDs, err := s.repo.ListEnabledTenantIDs(ctx)
	if err != nil {
		return err
	}
	for _, tenantID := range tenantIDs {
		stats, err := s.SyncTenant(ctx, tenantID)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("tenant sync cycle", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			}
			continue
		}
		if s.logger != nil {
			s.logger.Info("tenant sync cycle complete",
				slog.Int64("tenant_id", tenantID),
				slog.Int("users", stats.Users),
				slog.Int("added", stats.Added),
				slog.Int("converted", stats.Converted),
				slog.Int("removed", stats.Removed),
				slog.Int("failed", stats.Failed))
		}
	}
	return nil
}
