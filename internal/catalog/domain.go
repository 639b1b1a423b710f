package catalog

// Module is a named capability area of the platform, e.g. "security.evidence".
// Modules are process-wide reference data and immutable once a permission
// references them.
type Module struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	SortOrder int32  `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
}

// Action is a named operation that can be granted against a module.
type Action struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	SortOrder int32  `json:"sort_order"`
}

// Permission is the (module, action) pair, the unit a role can grant.
type Permission struct {
	ID       int64 `json:"id"`
	ModuleID int64 `json:"module_id"`
	ActionID int64 `json:"action_id"`
}

// PermissionDetail is a permission resolved to its module and action labels,
// the shape consumed by role editors.
type PermissionDetail struct {
	ID         int64  `json:"id"`
	ModuleSlug string `json:"module_slug"`
	ModuleName string `json:"module_name"`
	Category   string `json:"category"`
	ActionSlug string `json:"action_slug"`
	ActionName string `json:"action_name"`
}
