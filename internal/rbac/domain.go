package rbac

// ActionSet is the set of action slugs granted within one module.
type ActionSet map[string]struct{}

// Has reports whether the action slug is in the set.
func (s ActionSet) Has(action string) bool {
	_, ok := s[action]
	return ok
}

// PermissionMap is the effective permission shape for one user: module slug
// to the set of granted action slugs. It is order-independent and empty for
// users without role assignments.
type PermissionMap map[string]ActionSet

// Allows reports whether the map grants the action on the module.
func (m PermissionMap) Allows(module, action string) bool {
	return m[module].Has(action)
}

// Add records a (module, action) grant.
func (m PermissionMap) Add(module, action string) {
	set, ok := m[module]
	if !ok {
		set = make(ActionSet)
		m[module] = set
	}
	set[action] = struct{}{}
}

// ModuleAction is one resolved (module, action) grant row.
type ModuleAction struct {
	ModuleSlug string
	ActionSlug string
}
