package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"member", RoleMember},
		{"Librarian", RoleLibrarian},
		{" ADMIN ", RoleAdmin},
		{"", RoleNone},
		{"superuser", RoleNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.input))
		})
	}
}

func TestRank(t *testing.T) {
	assert.Equal(t, 0, RoleNone.Rank())
	assert.Equal(t, 1, RoleMember.Rank())
	assert.Equal(t, 2, RoleLibrarian.Rank())
	assert.Equal(t, 3, RoleAdmin.Rank())
	assert.Equal(t, 0, Role("owner").Rank())
	assert.False(t, Role("owner").Valid())
}

func TestHasRequiredRole(t *testing.T) {
	tests := []struct {
		name     string
		user     Role
		required Role
		want     bool
	}{
		{"admin satisfies member", RoleAdmin, RoleMember, true},
		{"admin satisfies librarian", RoleAdmin, RoleLibrarian, true},
		{"admin satisfies admin", RoleAdmin, RoleAdmin, true},
		{"librarian satisfies librarian", RoleLibrarian, RoleLibrarian, true},
		{"librarian satisfies member", RoleLibrarian, RoleMember, true},
		{"librarian fails admin", RoleLibrarian, RoleAdmin, false},
		{"member fails admin", RoleMember, RoleAdmin, false},
		{"member fails librarian", RoleMember, RoleLibrarian, false},
		{"absent fails member", RoleNone, RoleMember, false},
		{"unknown user fails member", Role("guest"), RoleMember, false},
		{"unknown requirement fails", RoleAdmin, Role("root"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasRequiredRole(tt.user, tt.required))
		})
	}
}

func TestHasRequiredRole_AbsentNeverPasses(t *testing.T) {
	for _, r := range All() {
		assert.False(t, HasRequiredRole(RoleNone, r), r)
	}
}

func TestHasRequiredRole_Monotone(t *testing.T) {
	// Passing a higher requirement implies passing every lower one.
	all := All()
	for _, user := range append(all, RoleNone) {
		for i := range all {
			for j := 0; j < i; j++ {
				if HasRequiredRole(user, all[i]) {
					assert.True(t, HasRequiredRole(user, all[j]), "%s: %s implies %s", user, all[i], all[j])
				}
			}
		}
	}
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin(RoleAdmin))
	assert.False(t, IsAdmin(RoleLibrarian))
	assert.False(t, IsAdmin(RoleMember))
	assert.False(t, IsAdmin(RoleNone))
}

func TestIsLibrarianOrAdmin(t *testing.T) {
	assert.True(t, IsLibrarianOrAdmin(RoleAdmin))
	assert.True(t, IsLibrarianOrAdmin(RoleLibrarian))
	assert.False(t, IsLibrarianOrAdmin(RoleMember))
	assert.False(t, IsLibrarianOrAdmin(RoleNone))
}

func TestHighestRole(t *testing.T) {
	assert.Equal(t, RoleNone, HighestRole(nil))
	assert.Equal(t, RoleAdmin, HighestRole([]Role{RoleMember, RoleAdmin, RoleLibrarian}))
	assert.Equal(t, RoleLibrarian, HighestRole([]Role{RoleMember, "bogus", RoleLibrarian}))
}
