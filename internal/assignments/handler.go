package assignments

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/stellarsoft-tech/idaraos/internal/platform/httpx"
	"github.com/stellarsoft-tech/idaraos/internal/rbac"
	"github.com/stellarsoft-tech/idaraos/internal/roles"
	"github.com/stellarsoft-tech/idaraos/internal/shared"
)

// Handler manages the user role-assignment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers assignment routes under /users/{userID}/roles.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("settings.users", "view"))
		r.Get("/{userID}/roles", h.getUserRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("settings.users", "edit"))
		r.Put("/{userID}/roles", h.setUserRoles)
	})
}

type setUserRolesRequest struct {
	RoleIDs []int64 `json:"role_ids"`
}

func (h *Handler) getUserRoles(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	userID, ok := parseID(w, r, "userID")
	if !ok {
		return
	}
	grants, err := h.service.GetUserRoles(r.Context(), userID, sess.TenantID())
	if err != nil {
		h.logger.Error("get user roles", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": grants})
}

func (h *Handler) setUserRoles(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	userID, ok := parseID(w, r, "userID")
	if !ok {
		return
	}
	var req setUserRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	err := h.service.SetUserRoles(r.Context(), userID, sess.TenantID(), sess.UserID(), req.RoleIDs)
	if err != nil {
		switch {
		case errors.Is(err, roles.ErrRoleNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
		case errors.Is(err, ErrSyncRolesProtected):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "directory-synced roles cannot be removed while bidirectional sync is off")
		default:
			h.logger.Error("set user roles", slog.Any("error", err))
			httpx.Internal(w)
		}
		return
	}
	grants, err := h.service.GetUserRoles(r.Context(), userID, sess.TenantID())
	if err != nil {
		h.logger.Error("reload user roles", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": grants})
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid id")
		return 0, false
	}
	return id, true
}
