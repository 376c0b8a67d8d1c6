package roles

import "strings"

// Requirement describes what a caller must hold to pass a check. When
// AllowedRoles is non-empty it takes precedence over MinRole; each entry
// is treated as a threshold, so any one met is enough. The zero
// Requirement means "at least member".
type Requirement struct {
	MinRole      Role   `json:"min_role,omitempty"`
	AllowedRoles []Role `json:"allowed_roles,omitempty"`
}

// MinRole builds a single-threshold requirement.
func MinRole(r Role) Requirement {
	return Requirement{MinRole: r}
}

// AnyOf builds a requirement satisfied by meeting any of rs.
func AnyOf(rs ...Role) Requirement {
	return Requirement{AllowedRoles: rs}
}

// Roles returns the roles the requirement is evaluated against.
func (q Requirement) Roles() []Role {
	if len(q.AllowedRoles) > 0 {
		return q.AllowedRoles
	}
	if q.MinRole == RoleNone {
		return []Role{RoleMember}
	}
	return []Role{q.MinRole}
}

// String renders the requirement for messages, e.g. "librarian or admin".
func (q Requirement) String() string {
	rs := q.Roles()
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, " or ")
}

// EvaluateAccess decides whether user satisfies req.
func EvaluateAccess(user Role, req Requirement) bool {
	for _, r := range req.Roles() {
		if HasRequiredRole(user, r) {
			return true
		}
	}
	return false
}
