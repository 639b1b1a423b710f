package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellarsoft-tech/idaraos/internal/shared"
)

type memoryRBACRepo struct {
	grants map[int64][]ModuleAction
	err    error
	calls  int
}

func (r *memoryRBACRepo) ResolvePermissions(ctx context.Context, userID int64) ([]ModuleAction, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.grants[userID], nil
}

func (r *memoryRBACRepo) HasPermission(ctx context.Context, userID int64, moduleSlug, actionSlug string) (bool, error) {
	r.calls++
	if r.err != nil {
		return false, r.err
	}
	for _, g := range r.grants[userID] {
		if g.ModuleSlug == moduleSlug && g.ActionSlug == actionSlug {
			return true, nil
		}
	}
	return false, nil
}

func authedSession(userID, tenantID int64) *shared.Session {
	sess := &shared.Session{}
	sess.SetUser(userID, tenantID)
	return sess
}

func TestResolveUserPermissionsUnionAcrossRoles(t *testing.T) {
	repo := &memoryRBACRepo{grants: map[int64][]ModuleAction{
		7: {
			{ModuleSlug: "security.evidence", ActionSlug: "view"},
			{ModuleSlug: "security.evidence", ActionSlug: "export"},
			// Duplicate rows from overlapping roles collapse.
			{ModuleSlug: "security.evidence", ActionSlug: "view"},
			{ModuleSlug: "documents.library", ActionSlug: "view"},
		},
	}}
	svc := NewService(repo, nil, nil)

	perms, err := svc.ResolveUserPermissions(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, perms, 2)
	require.True(t, perms.Allows("security.evidence", "view"))
	require.True(t, perms.Allows("security.evidence", "export"))
	require.True(t, perms.Allows("documents.library", "view"))
	require.False(t, perms.Allows("documents.library", "edit"))
	require.Len(t, perms["security.evidence"], 2)
}

func TestResolveUserPermissionsNoAssignments(t *testing.T) {
	svc := NewService(&memoryRBACRepo{grants: map[int64][]ModuleAction{}}, nil, nil)

	perms, err := svc.ResolveUserPermissions(context.Background(), 42)
	require.NoError(t, err)
	require.Empty(t, perms)
	require.False(t, perms.Allows("security.evidence", "view"))
}

func TestHasAnyPermission(t *testing.T) {
	repo := &memoryRBACRepo{grants: map[int64][]ModuleAction{
		7: {{ModuleSlug: "documents.library", ActionSlug: "edit"}},
	}}
	svc := NewService(repo, nil, nil)

	ok, err := svc.HasAnyPermission(context.Background(), 7, "documents.library", "view", "edit")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasAnyPermission(context.Background(), 7, "documents.library", "delete", "approve")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasAllPermissions(t *testing.T) {
	repo := &memoryRBACRepo{grants: map[int64][]ModuleAction{
		7: {
			{ModuleSlug: "documents.library", ActionSlug: "view"},
			{ModuleSlug: "documents.library", ActionSlug: "edit"},
		},
	}}
	svc := NewService(repo, nil, nil)

	ok, err := svc.HasAllPermissions(context.Background(), 7, "documents.library", "view", "edit")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasAllPermissions(context.Background(), 7, "documents.library", "view", "delete")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRequirePermissionAnonymous(t *testing.T) {
	repo := &memoryRBACRepo{grants: map[int64][]ModuleAction{}}
	svc := NewService(repo, nil, nil)

	_, err := svc.RequirePermission(context.Background(), nil, "security.evidence", "view")
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
	// Anonymous requests never reach the resolver.
	require.Zero(t, repo.calls)

	_, err = svc.RequirePermission(context.Background(), &shared.Session{}, "security.evidence", "view")
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestRequirePermissionGranted(t *testing.T) {
	repo := &memoryRBACRepo{grants: map[int64][]ModuleAction{
		7: {{ModuleSlug: "security.evidence", ActionSlug: "view"}},
	}}
	svc := NewService(repo, nil, nil)

	sess, err := svc.RequirePermission(context.Background(), authedSession(7, 3), "security.evidence", "view")
	require.NoError(t, err)
	require.Equal(t, int64(3), sess.TenantID())
}

func TestRequirePermissionDenied(t *testing.T) {
	repo := &memoryRBACRepo{grants: map[int64][]ModuleAction{}}
	svc := NewService(repo, nil, nil)

	_, err := svc.RequirePermission(context.Background(), authedSession(7, 3), "security.evidence", "view")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestRequirePermissionFailsClosedOnResolverError(t *testing.T) {
	repo := &memoryRBACRepo{err: errors.New("connection reset")}
	svc := NewService(repo, nil, nil)

	_, err := svc.RequirePermission(context.Background(), authedSession(7, 3), "security.evidence", "view")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func newGatedRequest(sess *shared.Session) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	return req
}

func TestMiddlewareRequire(t *testing.T) {
	repo := &memoryRBACRepo{grants: map[int64][]ModuleAction{
		7: {{ModuleSlug: "settings.roles", ActionSlug: "view"}},
	}}
	mw := Middleware{Service: NewService(repo, nil, nil)}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.Require("settings.roles", "view")(next)

	cases := []struct {
		name   string
		sess   *shared.Session
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"granted", authedSession(7, 1), http.StatusNoContent},
		{"denied", authedSession(8, 1), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, newGatedRequest(tc.sess))
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestMiddlewareRequireAny(t *testing.T) {
	repo := &memoryRBACRepo{grants: map[int64][]ModuleAction{
		7: {{ModuleSlug: "settings.users", ActionSlug: "edit"}},
	}}
	mw := Middleware{Service: NewService(repo, nil, nil)}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.RequireAny("settings.users", "view", "edit")(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newGatedRequest(authedSession(7, 1)))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newGatedRequest(authedSession(9, 1)))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
