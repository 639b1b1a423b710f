package roles

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrRoleNotFound indicates the role does not exist for the tenant.
	ErrRoleNotFound = errors.New("roles: role not found")
	// ErrDuplicateSlug indicates another role of the tenant already owns the slug.
	ErrDuplicateSlug = errors.New("roles: duplicate slug")
	// ErrSystemRoleImmutable indicates a structural edit of a built-in role.
	ErrSystemRoleImmutable = errors.New("roles: system role immutable")
	// ErrPermissionNotFound indicates a grant references an unknown permission.
	ErrPermissionNotFound = errors.New("roles: permission not found")
	// ErrNameRequired indicates a role was submitted without a name.
	ErrNameRequired = errors.New("roles: role name required")
)

// Role is a tenant-scoped bundle of permission grants.
type Role struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	IsSystem    bool      `json:"is_system"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleSummary annotates a role with live grant and assignment counts.
type RoleSummary struct {
	Role
	PermissionCount int64 `json:"permission_count"`
	UserCount       int64 `json:"user_count"`
}

// RoleDetail is a role together with its granted permission ids.
type RoleDetail struct {
	Role
	PermissionIDs []int64 `json:"permission_ids"`
}

// Slugify converts a display name into a URL-safe slug: lowercased, runs of
// non-alphanumeric characters collapsed to a single dash, dashes trimmed.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
