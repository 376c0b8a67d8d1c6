package roles

import "strings"

// Role is a position in the privilege hierarchy. The zero value means
// "absent": no authenticated user.
type Role string

const (
	RoleNone      Role = ""
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// roleRank defines the hierarchy levels (higher number = more privileges)
var roleRank = map[Role]int{
	RoleMember:    1,
	RoleLibrarian: 2,
	RoleAdmin:     3,
}

// All returns the valid roles in ascending order of privilege.
func All() []Role {
	return []Role{RoleMember, RoleLibrarian, RoleAdmin}
}

// ParseRole maps a string to a Role, ignoring case and surrounding space.
// Unknown values yield RoleNone.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; ok {
		return r
	}
	return RoleNone
}

// Rank returns the hierarchy level, 0 for absent or unknown roles.
func (r Role) Rank() int {
	return roleRank[r]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

func (r Role) String() string {
	return string(r)
}

// HasRequiredRole reports whether user meets or exceeds required.
// An absent or unknown user role never passes, and neither does an
// unknown required role.
func HasRequiredRole(user, required Role) bool {
	if !user.Valid() || !required.Valid() {
		return false
	}
	return user.Rank() >= required.Rank()
}

func IsAdmin(r Role) bool {
	return HasRequiredRole(r, RoleAdmin)
}

func IsLibrarianOrAdmin(r Role) bool {
	return HasRequiredRole(r, RoleLibrarian)
}

// HighestRole returns the most privileged valid role in rs, or RoleNone.
func HighestRole(rs []Role) Role {
	best := RoleNone
	for _, r := range rs {
		if r.Rank() > best.Rank() {
			best = r
		}
	}
	return best
}
