package rbac

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/stellarsoft-tech/idaraos/internal/shared"
)

// Middleware wires the policy gate into chi handler chains.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require ensures the current user holds (module, action).
func (m Middleware) Require(moduleSlug, actionSlug string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if _, err := m.Service.RequirePermission(r.Context(), sess, moduleSlug, actionSlug); err != nil {
				m.deny(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the current user holds at least one of the actions on
// the module.
func (m Middleware) RequireAny(moduleSlug string, actionSlugs ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if !sess.Authenticated() {
				m.deny(w, shared.ErrUnauthenticated)
				return
			}
			granted, err := m.Service.HasAnyPermission(r.Context(), sess.UserID(), moduleSlug, actionSlugs...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require any", slog.Any("error", err))
				}
				m.deny(w, shared.ErrForbidden)
				return
			}
			if !granted {
				m.deny(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAll ensures the current user holds every listed action on the module.
func (m Middleware) RequireAll(moduleSlug string, actionSlugs ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if !sess.Authenticated() {
				m.deny(w, shared.ErrUnauthenticated)
				return
			}
			granted, err := m.Service.HasAllPermissions(r.Context(), sess.UserID(), moduleSlug, actionSlugs...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require all", slog.Any("error", err))
				}
				m.deny(w, shared.ErrForbidden)
				return
			}
			if !granted {
				m.deny(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, err error) {
	status := http.StatusForbidden
	if errors.Is(err, shared.ErrUnauthenticated) {
		status = http.StatusUnauthorized
	}
	http.Error(w, http.StatusText(status), status)
}
