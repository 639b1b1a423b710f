package assignments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stellarsoft-tech/idaraos/internal/roles"
)

type grantKey struct {
	userID int64
	roleID int64
}

type memoryAssignmentRepo struct {
	grants      map[grantKey]Assignment
	tenantRoles map[int64]int64 // roleID -> tenantID
	lockCalls   int
}

func newMemoryAssignmentRepo(tenantRoles map[int64]int64) *memoryAssignmentRepo {
	return &memoryAssignmentRepo{
		grants:      make(map[grantKey]Assignment),
		tenantRoles: tenantRoles,
	}
}

func (r *memoryAssignmentRepo) put(a Assignment) {
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	r.grants[grantKey{a.UserID, a.RoleID}] = a
}

func (r *memoryAssignmentRepo) GetUserRoles(ctx context.Context, userID, tenantID int64) ([]UserRoleGrant, error) {
	var out []UserRoleGrant
	for key, a := range r.grants {
		if key.userID != userID {
			continue
		}
		out = append(out, UserRoleGrant{RoleID: a.RoleID, Source: a.Source, SCIMGroupID: a.SCIMGroupID, AssignedAt: a.AssignedAt})
	}
	return out, nil
}

func (r *memoryAssignmentRepo) ListSyncUserIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	seen := make(map[int64]struct{})
	var out []int64
	for key, a := range r.grants {
		if a.Source != SourceSync || r.tenantRoles[key.roleID] != tenantID {
			continue
		}
		if _, ok := seen[key.userID]; ok {
			continue
		}
		seen[key.userID] = struct{}{}
		out = append(out, key.userID)
	}
	return out, nil
}

func (r *memoryAssignmentRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot so a failed callback leaves the store untouched, the way a
	// rolled back transaction would.
	snapshot := make(map[grantKey]Assignment, len(r.grants))
	for k, v := range r.grants {
		snapshot[k] = v
	}
	if err := fn(ctx, &memoryAssignmentTx{repo: r}); err != nil {
		r.grants = snapshot
		return err
	}
	return nil
}

type memoryAssignmentTx struct {
	repo *memoryAssignmentRepo
}

func (tx *memoryAssignmentTx) LockUser(ctx context.Context, userID int64) error {
	tx.repo.lockCalls++
	return nil
}

func (tx *memoryAssignmentTx) ListAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	var out []Assignment
	for key, a := range tx.repo.grants {
		if key.userID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (tx *memoryAssignmentTx) InsertAssignment(ctx context.Context, a Assignment) error {
	key := grantKey{a.UserID, a.RoleID}
	if _, exists := tx.repo.grants[key]; exists {
		return errors.New("duplicate assignment")
	}
	tx.repo.put(a)
	return nil
}

func (tx *memoryAssignmentTx) ConvertToSync(ctx context.Context, userID, roleID int64, scimGroupID string) error {
	key := grantKey{userID, roleID}
	a, ok := tx.repo.grants[key]
	if !ok {
		return errors.New("assignment missing")
	}
	a.Source = SourceSync
	a.AssignedBy = nil
	a.SCIMGroupID = scimGroupID
	tx.repo.grants[key] = a
	return nil
}

func (tx *memoryAssignmentTx) DeleteAssignments(ctx context.Context, userID int64, roleIDs []int64) error {
	for _, roleID := range roleIDs {
		delete(tx.repo.grants, grantKey{userID, roleID})
	}
	return nil
}

func (tx *memoryAssignmentTx) DeleteManualAssignments(ctx context.Context, userID int64) error {
	for key, a := range tx.repo.grants {
		if key.userID == userID && a.Source == SourceManual {
			delete(tx.repo.grants, key)
		}
	}
	return nil
}

func (tx *memoryAssignmentTx) CountTenantRoles(ctx context.Context, tenantID int64, roleIDs []int64) (int, error) {
	count := 0
	for _, roleID := range roleIDs {
		if tx.repo.tenantRoles[roleID] == tenantID {
			count++
		}
	}
	return count, nil
}

type stubPolicies struct {
	bidi bool
	err  error
}

func (s stubPolicies) BidirectionalSyncEnabled(ctx context.Context, tenantID int64) (bool, error) {
	return s.bidi, s.err
}

const (
	testTenant = int64(1)
	testUser   = int64(10)
	testActor  = int64(99)
)

func testRoleSet() map[int64]int64 {
	return map[int64]int64{
		1: testTenant,
		2: testTenant,
		3: testTenant,
		4: 2, // other tenant
	}
}

func TestSetUserRolesReplacesManualSet(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceManual})
	svc := NewService(repo, stubPolicies{})

	err := svc.SetUserRoles(context.Background(), testUser, testTenant, testActor, []int64{2, 3})
	require.NoError(t, err)

	require.NotContains(t, repo.grants, grantKey{testUser, 1})
	for _, roleID := range []int64{2, 3} {
		a, ok := repo.grants[grantKey{testUser, roleID}]
		require.True(t, ok, "role %d should be assigned", roleID)
		require.Equal(t, SourceManual, a.Source)
		require.NotNil(t, a.AssignedBy)
		require.Equal(t, testActor, *a.AssignedBy)
	}
	require.Equal(t, 1, repo.lockCalls)
}

func TestSetUserRolesEmptySetClearsManual(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceManual})
	repo.put(Assignment{UserID: testUser, RoleID: 2, Source: SourceManual})
	svc := NewService(repo, stubPolicies{})

	require.NoError(t, svc.SetUserRoles(context.Background(), testUser, testTenant, testActor, nil))
	require.Empty(t, repo.grants)
}

func TestSetUserRolesRejectsForeignTenantRole(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	svc := NewService(repo, stubPolicies{})

	err := svc.SetUserRoles(context.Background(), testUser, testTenant, testActor, []int64{1, 4})
	require.ErrorIs(t, err, roles.ErrRoleNotFound)
	require.Empty(t, repo.grants)
}

func TestSetUserRolesKeepsSyncRowWhenDesired(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	assignedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceSync, SCIMGroupID: "grp-eng", AssignedAt: assignedAt})
	svc := NewService(repo, stubPolicies{})

	err := svc.SetUserRoles(context.Background(), testUser, testTenant, testActor, []int64{1, 2})
	require.NoError(t, err)

	// The sync grant survives as-is; only role 2 gains a manual row.
	kept := repo.grants[grantKey{testUser, 1}]
	require.Equal(t, SourceSync, kept.Source)
	require.Equal(t, "grp-eng", kept.SCIMGroupID)
	require.Equal(t, assignedAt, kept.AssignedAt)
	require.Equal(t, SourceManual, repo.grants[grantKey{testUser, 2}].Source)
}

func TestSetUserRolesProtectsSyncRolesWithoutBidirectional(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceSync, SCIMGroupID: "grp-eng"})
	repo.put(Assignment{UserID: testUser, RoleID: 2, Source: SourceManual})
	svc := NewService(repo, stubPolicies{bidi: false})

	err := svc.SetUserRoles(context.Background(), testUser, testTenant, testActor, []int64{3})
	require.ErrorIs(t, err, ErrSyncRolesProtected)

	// Nothing changed: both prior grants survive, the new role was never written.
	require.Len(t, repo.grants, 2)
	require.Contains(t, repo.grants, grantKey{testUser, 1})
	require.Contains(t, repo.grants, grantKey{testUser, 2})
}

func TestSetUserRolesDropsSyncRolesWithBidirectional(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceSync, SCIMGroupID: "grp-eng"})
	svc := NewService(repo, stubPolicies{bidi: true})

	err := svc.SetUserRoles(context.Background(), testUser, testTenant, testActor, []int64{2})
	require.NoError(t, err)

	require.NotContains(t, repo.grants, grantKey{testUser, 1})
	require.Equal(t, SourceManual, repo.grants[grantKey{testUser, 2}].Source)
}

func TestSetUserRolesPolicyErrorAborts(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceSync})
	svc := NewService(repo, stubPolicies{err: errors.New("policy store down")})

	err := svc.SetUserRoles(context.Background(), testUser, testTenant, testActor, []int64{2})
	require.Error(t, err)
	require.Len(t, repo.grants, 1)
}

func TestSetUserRolesDeduplicatesDesired(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	svc := NewService(repo, stubPolicies{})

	require.NoError(t, svc.SetUserRoles(context.Background(), testUser, testTenant, testActor, []int64{1, 1, 2, 2}))
	require.Len(t, repo.grants, 2)
}

func TestReconcileAddsAndRemovesSyncRoles(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceSync, SCIMGroupID: "grp-old"})
	repo.put(Assignment{UserID: testUser, RoleID: 2, Source: SourceManual})
	svc := NewService(repo, stubPolicies{})

	result, err := svc.ReconcileSyncRoles(context.Background(), testUser, testTenant, []int64{3}, "grp-eng")
	require.NoError(t, err)
	require.Equal(t, 1, result.Added)
	require.Equal(t, 1, result.Removed)
	require.Equal(t, 0, result.Converted)
	require.True(t, result.Changed())

	// Stale sync role gone, manual grant untouched, new sync role present.
	require.NotContains(t, repo.grants, grantKey{testUser, 1})
	require.Equal(t, SourceManual, repo.grants[grantKey{testUser, 2}].Source)
	added := repo.grants[grantKey{testUser, 3}]
	require.Equal(t, SourceSync, added.Source)
	require.Equal(t, "grp-eng", added.SCIMGroupID)
	require.Nil(t, added.AssignedBy)
}

func TestReconcileConvertsManualGrant(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	actor := testActor
	assignedAt := time.Date(2026, 2, 14, 8, 30, 0, 0, time.UTC)
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceManual, AssignedBy: &actor, AssignedAt: assignedAt})
	svc := NewService(repo, stubPolicies{})

	result, err := svc.ReconcileSyncRoles(context.Background(), testUser, testTenant, []int64{1}, "grp-eng")
	require.NoError(t, err)
	require.Equal(t, 1, result.Converted)
	require.Equal(t, 0, result.Added)
	require.Equal(t, 0, result.Removed)

	converted := repo.grants[grantKey{testUser, 1}]
	require.Equal(t, SourceSync, converted.Source)
	require.Equal(t, "grp-eng", converted.SCIMGroupID)
	require.Nil(t, converted.AssignedBy)
	require.Equal(t, assignedAt, converted.AssignedAt)
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	svc := NewService(repo, stubPolicies{})

	first, err := svc.ReconcileSyncRoles(context.Background(), testUser, testTenant, []int64{1, 2}, "grp-eng")
	require.NoError(t, err)
	require.Equal(t, 2, first.Added)

	second, err := svc.ReconcileSyncRoles(context.Background(), testUser, testTenant, []int64{1, 2}, "grp-eng")
	require.NoError(t, err)
	require.False(t, second.Changed())
	require.Len(t, repo.grants, 2)
}

func TestReconcileUpdatesGroupAttribution(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceSync, SCIMGroupID: "grp-old"})
	svc := NewService(repo, stubPolicies{})

	result, err := svc.ReconcileSyncRoles(context.Background(), testUser, testTenant, []int64{1}, "grp-new")
	require.NoError(t, err)

	// Re-attribution is not a conversion, just bookkeeping.
	require.Equal(t, 0, result.Converted)
	require.Equal(t, "grp-new", repo.grants[grantKey{testUser, 1}].SCIMGroupID)
}

func TestListSyncAssignedUserIDs(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	repo.put(Assignment{UserID: testUser, RoleID: 1, Source: SourceSync, SCIMGroupID: "grp-eng"})
	repo.put(Assignment{UserID: 11, RoleID: 2, Source: SourceManual})
	svc := NewService(repo, stubPolicies{})

	ids, err := svc.ListSyncAssignedUserIDs(context.Background(), testTenant)
	require.NoError(t, err)
	require.Equal(t, []int64{testUser}, ids)
}

func TestReconcileRejectsForeignTenantRole(t *testing.T) {
	repo := newMemoryAssignmentRepo(testRoleSet())
	svc := NewService(repo, stubPolicies{})

	_, err := svc.ReconcileSyncRoles(context.Background(), testUser, testTenant, []int64{4}, "grp-eng")
	require.ErrorIs(t, err, roles.ErrRoleNotFound)
	require.Empty(t, repo.grants)
}
