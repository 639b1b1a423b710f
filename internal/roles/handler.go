package roles

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stellarsoft-tech/idaraos/internal/platform/httpx"
	"github.com/stellarsoft-tech/idaraos/internal/rbac"
	"github.com/stellarsoft-tech/idaraos/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("settings.roles", "view"))
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("settings.roles", "edit"))
		r.Post("/", h.createRole)
		r.Patch("/{roleID}", h.updateRole)
		r.Delete("/{roleID}", h.deleteRole)
	})
}

type createRoleRequest struct {
	Name          string  `json:"name" validate:"required,max=120"`
	Description   string  `json:"description" validate:"max=500"`
	Color         string  `json:"color" validate:"omitempty,hexcolor"`
	PermissionIDs []int64 `json:"permission_ids"`
}

type updateRoleRequest struct {
	Name          *string `json:"name" validate:"omitempty,max=120"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
	Color         *string `json:"color" validate:"omitempty,hexcolor"`
	PermissionIDs []int64 `json:"permission_ids"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	summaries, err := h.service.ListRoles(r.Context(), sess.TenantID())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": summaries})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	roleID, ok := parseID(w, r, "roleID")
	if !ok {
		return
	}
	detail, err := h.service.GetRole(r.Context(), roleID, sess.TenantID())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), sess.TenantID(), CreateRoleInput{
		Name:          req.Name,
		Description:   req.Description,
		Color:         req.Color,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	roleID, ok := parseID(w, r, "roleID")
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), roleID, sess.TenantID(), UpdateRolePatch{
		Name:          req.Name,
		Description:   req.Description,
		Color:         req.Color,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	roleID, ok := parseID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), roleID, sess.TenantID()); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRoleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
	case errors.Is(err, ErrPermissionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "permission not found")
	case errors.Is(err, ErrDuplicateSlug):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "a role with this name already exists")
	case errors.Is(err, ErrSystemRoleImmutable):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "system roles cannot be deleted")
	case errors.Is(err, ErrNameRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "role name required")
	default:
		h.logger.Error("role operation", slog.Any("error", err))
		httpx.Internal(w)
	}
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid id")
		return 0, false
	}
	return id, true
}
