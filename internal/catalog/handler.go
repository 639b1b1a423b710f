package catalog

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/stellarsoft-tech/idaraos/internal/platform/httpx"
	"github.com/stellarsoft-tech/idaraos/internal/rbac"
)

// Handler exposes the permission catalog listing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("settings.roles", "view"))
		r.Get("/modules", h.listModules)
		r.Get("/actions", h.listActions)
		r.Get("/permissions", h.listPermissions)
	})
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service.ListModules(r.Context())
	if err != nil {
		h.logger.Error("list modules", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": modules})
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.service.ListActions(r.Context())
	if err != nil {
		h.logger.Error("list actions", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}
