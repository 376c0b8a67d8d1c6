package views

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/models"
	"github.com/upb/library-portal/session"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(zap.NewNop())
	require.NoError(t, err)
	return r
}

func userWith(role roles.Role) *session.Claims {
	c := &session.Claims{Email: "u@example.com", Name: "Uma User", Role: role}
	c.Subject = "sub"
	c.ID = "jti"
	return c
}

func render(t *testing.T, page string, data PageData) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	newRenderer(t).Render(w, http.StatusOK, page, data)
	return w.Code, w.Body.String()
}

func sampleIndex() IndexContent {
	due := time.Now().Add(-48 * time.Hour)
	return IndexContent{
		Books: []models.Book{
			{ID: 1, Title: "Dune", Author: "Frank Herbert", IsCheckedOut: false},
			{ID: 2, Title: "Emma", Author: "Jane Austen", IsCheckedOut: true, BorrowerName: "Ana", DueDate: &due},
		},
		Stats: &models.Stats{TotalBooks: 2, AvailableBooks: 1, CheckedOutBooks: 1, OverdueBooks: 1},
	}
}

func TestNew_ParsesAllPages(t *testing.T) {
	r := newRenderer(t)
	for _, page := range pages {
		assert.Contains(t, r.pages, page)
	}
}

func TestRender_IndexByRole(t *testing.T) {
	tests := []struct {
		name        string
		user        *session.Claims
		contains    []string
		notContains []string
	}{
		{
			name:        "anonymous sees catalog and sign in prompt",
			user:        nil,
			contains:    []string{"Dune", "Sign in with Google", "Please sign in to access this content."},
			notContains: []string{"Add Book", "/books/1/edit", "/books/1/delete", "Ana"},
		},
		{
			name:        "member sees catalog only",
			user:        userWith(roles.RoleMember),
			contains:    []string{"Dune", "MEMBER", "badge-member", "Sign out"},
			notContains: []string{"Add Book", "/books/1/edit", "/books/1/delete", "Please sign in"},
		},
		{
			name:        "librarian can edit and lend",
			user:        userWith(roles.RoleLibrarian),
			contains:    []string{"Add Book", "/books/1/edit", "/books/1/checkout", "/books/2/checkin", "Ana", "Overdue"},
			notContains: []string{"/books/1/delete", `href="/admin"`},
		},
		{
			name:     "admin can delete",
			user:     userWith(roles.RoleAdmin),
			contains: []string{"Add Book", "/books/1/delete", `href="/admin"`, "ADMIN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := render(t, PageIndex, PageData{User: tt.user, Content: sampleIndex(), CSRFField: "csrf_token", CSRFToken: "tok"})

			assert.Equal(t, http.StatusOK, code)
			for _, s := range tt.contains {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, body, s)
			}
		})
	}
}

func TestRender_AdminFallback(t *testing.T) {
	_, body := render(t, PageAdmin, PageData{User: userWith(roles.RoleLibrarian), Content: AdminContent{}})

	assert.Contains(t, body, "Admin access required")
	assert.Contains(t, body, "You don&#39;t have permission to view this content. Required role: admin")
	assert.NotContains(t, body, "Recent Activity")
}

func TestRender_AdminDashboard(t *testing.T) {
	_, body := render(t, PageAdmin, PageData{
		User: userWith(roles.RoleAdmin),
		Content: AdminContent{
			AdminCount:     1,
			LibrarianCount: 2,
			Recent: []*models.AuditLog{
				models.NewAuditLog(models.AuditActionSignIn, "session").WithActor("a@x.com", "admin"),
			},
		},
	})

	assert.Contains(t, body, "Recent Activity")
	assert.Contains(t, body, "sign_in")
	assert.Contains(t, body, "a@x.com")
}

func TestRender_FormErrorsAndEscaping(t *testing.T) {
	_, body := render(t, PageBookForm, PageData{
		User: userWith(roles.RoleLibrarian),
		Content: BookFormContent{
			BookID: 5,
			Input:  models.BookInput{Title: `<script>alert(1)</script>`},
			Errors: map[string]string{"author": "author is required"},
		},
		CSRFField: "csrf_token",
		CSRFToken: "tok-123",
	})

	assert.Contains(t, body, `action="/books/5"`)
	assert.Contains(t, body, "author is required")
	assert.Contains(t, body, `value="tok-123"`)
	assert.NotContains(t, body, "<script>alert(1)</script>")
}

func TestRender_PromoteSelectsRole(t *testing.T) {
	_, body := render(t, PagePromote, PageData{
		User:    userWith(roles.RoleAdmin),
		Content: PromoteContent{Input: models.RoleChange{Role: "librarian"}, Roles: roles.All()},
	})

	assert.Contains(t, body, `<option value="librarian" selected>Librarian</option>`)
	assert.Contains(t, body, `<option value="admin" >Admin</option>`)
}

func TestRender_UnknownPage(t *testing.T) {
	w := httptest.NewRecorder()
	newRenderer(t).Render(w, http.StatusOK, "missing.html", PageData{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDenialFor(t *testing.T) {
	assert.Nil(t, DenialFor(roles.LibrarianOrAdmin(), roles.RoleAdmin))

	anon := DenialFor(roles.LibrarianOrAdmin(), roles.RoleNone)
	require.NotNil(t, anon)
	assert.True(t, anon.SignIn)
	assert.Equal(t, roles.SignInMessage, anon.Message)

	member := DenialFor(roles.LibrarianOrAdmin(), roles.RoleMember)
	require.NotNil(t, member)
	assert.False(t, member.SignIn)
	assert.Equal(t, "Librarian or admin access required", member.Title)
	assert.Contains(t, member.Message, "Required role: librarian")
}

func TestFuncs(t *testing.T) {
	funcs := Funcs()

	can := funcs["can"].(func(roles.Role, string) bool)
	assert.True(t, can(roles.RoleAdmin, "librarian"))
	assert.False(t, can(roles.RoleMember, "librarian"))
	assert.False(t, can(roles.RoleNone, "member"))

	badge := funcs["roleBadge"].(func(interface{}) string)
	assert.Equal(t, "badge badge-admin", badge(roles.RoleAdmin))
	assert.Equal(t, "badge badge-librarian", badge("librarian"))
	assert.Equal(t, "badge", badge("owner"))

	assert.Equal(t, "Admin", titleCase("admin"))
	assert.Equal(t, "", formatDate(nil))
}

func TestAuthErrorMessage(t *testing.T) {
	assert.Contains(t, AuthErrorMessage("AccessDenied"), "permission")
	assert.Contains(t, AuthErrorMessage("Configuration"), "not configured")
	assert.Contains(t, AuthErrorMessage("whatever"), "try again")
}
