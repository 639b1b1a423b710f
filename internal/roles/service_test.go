package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRoleRepo struct {
	roles       map[int64]Role
	permissions map[int64][]int64 // roleID -> permission ids
	knownPerms  map[int64]struct{}
	nextID      int64
}

func newMemoryRoleRepo(permIDs ...int64) *memoryRoleRepo {
	known := make(map[int64]struct{}, len(permIDs))
	for _, id := range permIDs {
		known[id] = struct{}{}
	}
	return &memoryRoleRepo{
		roles:       make(map[int64]Role),
		permissions: make(map[int64][]int64),
		knownPerms:  known,
	}
}

func (r *memoryRoleRepo) seed(role Role, permIDs ...int64) Role {
	r.nextID++
	role.ID = r.nextID
	if role.Slug == "" {
		role.Slug = Slugify(role.Name)
	}
	r.roles[role.ID] = role
	r.permissions[role.ID] = permIDs
	return role
}

func (r *memoryRoleRepo) ListRoles(ctx context.Context, tenantID int64) ([]RoleSummary, error) {
	var out []RoleSummary
	for _, role := range r.roles {
		if role.TenantID != tenantID {
			continue
		}
		out = append(out, RoleSummary{Role: role, PermissionCount: int64(len(r.permissions[role.ID]))})
	}
	return out, nil
}

func (r *memoryRoleRepo) GetRole(ctx context.Context, roleID, tenantID int64) (Role, error) {
	role, ok := r.roles[roleID]
	if !ok || role.TenantID != tenantID {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

func (r *memoryRoleRepo) GetRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	return append([]int64(nil), r.permissions[roleID]...), nil
}

func (r *memoryRoleRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryRoleTx{repo: r})
}

type memoryRoleTx struct {
	repo *memoryRoleRepo
}

func (tx *memoryRoleTx) InsertRole(ctx context.Context, role Role) (Role, error) {
	for _, existing := range tx.repo.roles {
		if existing.TenantID == role.TenantID && existing.Slug == role.Slug {
			return Role{}, ErrDuplicateSlug
		}
	}
	tx.repo.nextID++
	role.ID = tx.repo.nextID
	tx.repo.roles[role.ID] = role
	return role, nil
}

func (tx *memoryRoleTx) UpdateRole(ctx context.Context, role Role) (Role, error) {
	for _, existing := range tx.repo.roles {
		if existing.ID != role.ID && existing.TenantID == role.TenantID && existing.Slug == role.Slug {
			return Role{}, ErrDuplicateSlug
		}
	}
	tx.repo.roles[role.ID] = role
	return role, nil
}

func (tx *memoryRoleTx) GetRoleForUpdate(ctx context.Context, roleID, tenantID int64) (Role, error) {
	return tx.repo.GetRole(ctx, roleID, tenantID)
}

func (tx *memoryRoleTx) CountPermissions(ctx context.Context, permissionIDs []int64) (int, error) {
	seen := make(map[int64]struct{})
	for _, id := range permissionIDs {
		if _, ok := tx.repo.knownPerms[id]; ok {
			seen[id] = struct{}{}
		}
	}
	return len(seen), nil
}

func (tx *memoryRoleTx) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	tx.repo.permissions[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (tx *memoryRoleTx) DeleteRole(ctx context.Context, roleID int64) error {
	delete(tx.repo.roles, roleID)
	delete(tx.repo.permissions, roleID)
	return nil
}

func strPtr(s string) *string { return &s }

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Compliance Lead":       "compliance-lead",
		"  Compliance   Lead  ": "compliance-lead",
		"Ops/SRE (On-Call)":     "ops-sre-on-call",
		"Évidence":              "vidence",
		"---":                   "",
	}
	for input, want := range cases {
		require.Equal(t, want, Slugify(input), "input %q", input)
	}
}

func TestCreateRole(t *testing.T) {
	repo := newMemoryRoleRepo(101, 102)
	svc := NewService(repo)

	role, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{
		Name:          "  Compliance Lead ",
		Description:   "Owns audit prep",
		Color:         "#DB2777",
		PermissionIDs: []int64{101, 102},
	})
	require.NoError(t, err)
	require.Equal(t, "Compliance Lead", role.Name)
	require.Equal(t, "compliance-lead", role.Slug)
	require.False(t, role.IsSystem)

	perms, err := repo.GetRolePermissionIDs(context.Background(), role.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{101, 102}, perms)
}

func TestCreateRoleRequiresName(t *testing.T) {
	svc := NewService(newMemoryRoleRepo())
	_, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: "   "})
	require.ErrorIs(t, err, ErrNameRequired)
}

func TestCreateRoleDuplicateSlug(t *testing.T) {
	repo := newMemoryRoleRepo()
	repo.seed(Role{TenantID: 1, Name: "Compliance Lead"})
	svc := NewService(repo)

	_, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: "compliance LEAD"})
	require.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestCreateRoleSameSlugOtherTenant(t *testing.T) {
	repo := newMemoryRoleRepo()
	repo.seed(Role{TenantID: 2, Name: "Compliance Lead"})
	svc := NewService(repo)

	_, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: "Compliance Lead"})
	require.NoError(t, err)
}

func TestCreateRoleUnknownPermission(t *testing.T) {
	repo := newMemoryRoleRepo(101)
	svc := NewService(repo)

	_, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{
		Name:          "Compliance Lead",
		PermissionIDs: []int64{101, 999},
	})
	require.ErrorIs(t, err, ErrPermissionNotFound)
	require.Empty(t, repo.roles)
}

func TestUpdateRoleRenameRegeneratesSlug(t *testing.T) {
	repo := newMemoryRoleRepo()
	role := repo.seed(Role{TenantID: 1, Name: "Compliance Lead"})
	svc := NewService(repo)

	updated, err := svc.UpdateRole(context.Background(), role.ID, 1, UpdateRolePatch{Name: strPtr("Audit Owner")})
	require.NoError(t, err)
	require.Equal(t, "Audit Owner", updated.Name)
	require.Equal(t, "audit-owner", updated.Slug)
}

func TestUpdateRoleSystemIgnoresCosmeticEdits(t *testing.T) {
	repo := newMemoryRoleRepo(101, 102)
	role := repo.seed(Role{TenantID: 1, Name: "Admin", IsSystem: true}, 101)
	svc := NewService(repo)

	updated, err := svc.UpdateRole(context.Background(), role.ID, 1, UpdateRolePatch{
		Name:          strPtr("Superuser"),
		Description:   strPtr("renamed"),
		PermissionIDs: []int64{101, 102},
	})
	require.NoError(t, err)

	// Identity is frozen for built-ins, but the grant set still changes.
	require.Equal(t, "Admin", updated.Name)
	require.Equal(t, "admin", updated.Slug)
	perms, err := repo.GetRolePermissionIDs(context.Background(), role.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{101, 102}, perms)
}

func TestUpdateRoleNilPermissionsKeepsGrants(t *testing.T) {
	repo := newMemoryRoleRepo(101)
	role := repo.seed(Role{TenantID: 1, Name: "Compliance Lead"}, 101)
	svc := NewService(repo)

	_, err := svc.UpdateRole(context.Background(), role.ID, 1, UpdateRolePatch{Description: strPtr("updated")})
	require.NoError(t, err)

	perms, err := repo.GetRolePermissionIDs(context.Background(), role.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{101}, perms)
}

func TestUpdateRoleEmptyPermissionsClearsGrants(t *testing.T) {
	repo := newMemoryRoleRepo(101)
	role := repo.seed(Role{TenantID: 1, Name: "Compliance Lead"}, 101)
	svc := NewService(repo)

	_, err := svc.UpdateRole(context.Background(), role.ID, 1, UpdateRolePatch{PermissionIDs: []int64{}})
	require.NoError(t, err)

	perms, err := repo.GetRolePermissionIDs(context.Background(), role.ID)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestUpdateRoleWrongTenant(t *testing.T) {
	repo := newMemoryRoleRepo()
	role := repo.seed(Role{TenantID: 1, Name: "Compliance Lead"})
	svc := NewService(repo)

	_, err := svc.UpdateRole(context.Background(), role.ID, 2, UpdateRolePatch{Name: strPtr("Other")})
	require.ErrorIs(t, err, ErrRoleNotFound)
}

func TestDeleteRole(t *testing.T) {
	repo := newMemoryRoleRepo()
	role := repo.seed(Role{TenantID: 1, Name: "Compliance Lead"})
	svc := NewService(repo)

	require.NoError(t, svc.DeleteRole(context.Background(), role.ID, 1))
	require.NotContains(t, repo.roles, role.ID)
}

func TestDeleteSystemRole(t *testing.T) {
	repo := newMemoryRoleRepo()
	role := repo.seed(Role{TenantID: 1, Name: "Admin", IsSystem: true})
	svc := NewService(repo)

	err := svc.DeleteRole(context.Background(), role.ID, 1)
	require.ErrorIs(t, err, ErrSystemRoleImmutable)
	require.Contains(t, repo.roles, role.ID)
}
