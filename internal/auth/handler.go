package auth

import (
	"errors"
	"net/http"
	"sort"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stellarsoft-tech/idaraos/internal/platform/httpx"
	"github.com/stellarsoft-tech/idaraos/internal/rbac"
	"github.com/stellarsoft-tech/idaraos/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	resolver       *rbac.Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *rbac.Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		resolver:       resolver,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	UserID      int64               `json:"user_id"`
	TenantID    int64               `json:"tenant_id"`
	Email       string              `json:"email,omitempty"`
	Permissions map[string][]string `json:"permissions"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Internal(w)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Internal(w)
		return
	}
	sess.SetUser(user.ID, user.TenantID)

	perms, err := h.resolver.ResolveUserPermissions(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("resolve permissions at login", slog.Any("error", err))
		perms = rbac.PermissionMap{}
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		UserID:      user.ID,
		TenantID:    user.TenantID,
		Email:       user.Email,
		Permissions: flattenPermissions(perms),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the current identity and effective permission map, the
// shape the UI uses for permission gating.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
		return
	}
	perms, err := h.resolver.ResolveUserPermissions(r.Context(), sess.UserID())
	if err != nil {
		h.logger.Error("resolve permissions", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		UserID:      sess.UserID(),
		TenantID:    sess.TenantID(),
		Permissions: flattenPermissions(perms),
	})
}

// HandleLoginForTest exposes the login handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}

// HandleMeForTest exposes the identity handler for tests.
func (h *Handler) HandleMeForTest(w http.ResponseWriter, r *http.Request) {
	h.handleMe(w, r)
}

func flattenPermissions(perms rbac.PermissionMap) map[string][]string {
	out := make(map[string][]string, len(perms))
	for module, actions := range perms {
		list := make([]string, 0, len(actions))
		for action := range actions {
			list = append(list, action)
		}
		sort.Strings(list)
		out[module] = list
	}
	return out
}
