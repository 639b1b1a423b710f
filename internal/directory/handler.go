package directory

import (
	"context"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/stellarsoft-tech/idaraos/internal/platform/httpx"
	"github.com/stellarsoft-tech/idaraos/internal/rbac"
	"github.com/stellarsoft-tech/idaraos/internal/shared"
)

// SyncEnqueuer queues an on-demand sync cycle for one tenant. Implemented by
// the jobs client.
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, tenantID int64) error
}

// Handler manages the directory integration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer SyncEnqueuer
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, enqueuer SyncEnqueuer, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, enqueuer: enqueuer, rbac: rbac}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("settings.users", "view"))
		r.Get("/integration", h.getIntegration)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("settings.users", "edit"))
		r.Post("/sync", h.triggerSync)
	})
}

func (h *Handler) getIntegration(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	integ, err := h.service.GetIntegration(r.Context(), sess.TenantID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no directory integration is configured")
			return
		}
		h.logger.Error("get integration", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"integration": integ})
}

// triggerSync enqueues one sync cycle for the caller's tenant. The cycle
// itself runs on the worker; this only queues it.
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	integ, err := h.service.GetIntegration(r.Context(), sess.TenantID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no directory integration is configured")
			return
		}
		h.logger.Error("get integration", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	if !integ.Enabled {
		httpx.Problem(w, http.StatusConflict, "Sync Disabled", "the directory integration is disabled")
		return
	}
	if err := h.enqueuer.EnqueueSync(r.Context(), sess.TenantID()); err != nil {
		h.logger.Error("enqueue directory sync", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
}
