package jobs

import (
	"context"
	"encoding/json"

	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stellarsoft-tech/idaraos/internal/directory"
	jobmetrics "github.com/stellarsoft-tech/idaraos/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDirectorySync runs directory-sync reconciliation. A payload with
	// TenantID zero syncs every tenant with an enabled integration.
	TaskDirectorySync = "directory:sync"
)

// DirectorySyncPayload selects which tenant to reconcile.
type DirectorySyncPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// NewDirectorySyncTask constructs an Asynq task.
func NewDirectorySyncTask(payload DirectorySyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDirectorySync, data), nil
}

// DirectorySyncer is implemented by directory.Service.
type DirectorySyncer interface {
	SyncAll(ctx context.Context) error
	SyncTenant(ctx context.Context, tenantID int64) (directory.CycleStats, error)
}

// NewDirectorySyncHandler builds the asynq handler for TaskDirectorySync.
// Metrics may be nil.
func NewDirectorySyncHandler(svc DirectorySyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DirectorySyncPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track(TaskDirectorySync)
		if payload.TenantID == 0 {
			return tracker.End(svc.SyncAll(ctx))
		}
		stats, err := svc.SyncTenant(ctx, payload.TenantID)
		if err != nil {
			return tracker.End(err)
		}
		_ = tracker.End(nil)
		if logger != nil {
			logger.Info("directory sync task complete",
				slog.Int64("tenant_id", payload.TenantID),
				slog.Int("users", stats.Users),
				slog.Int("added", stats.Added),
				slog.Int("converted", stats.Converted),
				slog.Int("removed", stats.Removed),
				slog.Int("failed", stats.Failed))
		}
		return nil
	}
}
