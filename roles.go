package access

// RoleManager answers role-permission questions over the configuration-loaded
// role set. It holds only immutable data and performs no I/O.
type RoleManager struct {
	byID  map[string]Role
	perms map[string]map[string]struct{} // role ID -> raw permission tokens
}

// NewRoleManager indexes the configured roles by their IDs. The RoleMap keys
// are human-readable; lookups at decision time use Role.ID.
func NewRoleManager(roles RoleMap) *RoleManager {
	m := &RoleManager{
		byID:  make(map[string]Role, len(roles)),
		perms: make(map[string]map[string]struct{}, len(roles)),
	}
	for _, role := range roles {
		m.byID[role.ID] = role
		set := make(map[string]struct{}, len(role.Permissions))
		for _, p := range role.Permissions {
			set[p] = struct{}{}
		}
		m.perms[role.ID] = set
	}
	return m
}

// GetRole returns the role with the given ID.
func (m *RoleManager) GetRole(id string) (Role, bool) {
	r, ok := m.byID[id]
	return r, ok
}

// PermissionsForRoles returns the union of permission tokens across the given
// role IDs. Unknown IDs silently contribute nothing.
func (m *RoleManager) PermissionsForRoles(roleIDs []string) map[string]struct{} {
	union := make(map[string]struct{})
	for _, id := range roleIDs {
		for p := range m.perms[id] {
			union[p] = struct{}{}
		}
	}
	return union
}

// HasPermission reports whether the given roles collectively grant
// resource:action. A role holding "*:*" grants everything; otherwise any of
// the exact, wildcarded or ownership-qualified forms in the union suffices.
// Empty or unknown role lists are not errors, just false.
func (m *RoleManager) HasPermission(roleIDs []string, resource, action string) bool {
	for _, id := range roleIDs {
		if _, ok := m.perms[id][WildcardAll]; ok {
			return true
		}
	}
	return grantsAccess(m.PermissionsForRoles(roleIDs), resource, action)
}
