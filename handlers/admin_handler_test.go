package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/models"
	"github.com/upb/library-portal/services"
	"github.com/upb/library-portal/services/audit"
)

func setupAdminRouter(t *testing.T) (chi.Router, *MockCatalog, *MockAuditTrail) {
	t.Helper()
	catalog := new(MockCatalog)
	trail := new(MockAuditTrail)
	h := NewAdminHandler(catalog, trail, stubCounter{admins: 1, librarians: 3}, newTestRenderer(t), testCookie, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/admin", h.HandleDashboard)
	r.Get("/admin/promote", h.HandlePromoteForm)
	r.Post("/admin/promote", h.HandlePromote)
	r.Post("/api/v1/admin/roles", h.HandleSetRole)
	return r, catalog, trail
}

func TestHandleDashboard(t *testing.T) {
	t.Run("renders counts stats and recent activity", func(t *testing.T) {
		router, catalog, trail := setupAdminRouter(t)
		catalog.On("Stats", mock.Anything, testBearer).Return(&models.Stats{TotalBooks: 42, CheckedOutBooks: 5, OverdueBooks: 1}, nil)
		trail.On("Recent", mock.Anything, recentActivityLimit).Return([]*models.AuditLog{
			models.NewAuditLog(models.AuditActionRoleChanged, "role").WithActor("admin@example.com", "admin").WithResource("bob@example.com"),
		}, nil)
		trail.On("GetStats").Return(audit.Stats{BufferSize: 1000, WorkerCount: 2, Started: true})

		w := serve(router, httptest.NewRequest(http.MethodGet, "/admin", nil), claimsFor(roles.RoleAdmin))

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "1 admin and 3 librarian addresses")
		assert.Contains(t, body, "42 books, 5 checked out, 1 overdue.")
		assert.Contains(t, body, "role_changed")
		assert.Contains(t, body, "bob@example.com")
		assert.Contains(t, body, "0 pending of 1000, 2 workers.")
	})

	t.Run("degrades when the catalog and audit store fail", func(t *testing.T) {
		router, catalog, trail := setupAdminRouter(t)
		catalog.On("Stats", mock.Anything, testBearer).Return(nil, services.ErrCatalogTimeout)
		trail.On("Recent", mock.Anything, recentActivityLimit).Return(nil, assert.AnError)
		trail.On("GetStats").Return(audit.Stats{})

		w := serve(router, httptest.NewRequest(http.MethodGet, "/admin", nil), claimsFor(roles.RoleAdmin))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "No recorded activity.")
	})

	t.Run("shows the role change notice", func(t *testing.T) {
		router, catalog, trail := setupAdminRouter(t)
		catalog.On("Stats", mock.Anything, testBearer).Return(&models.Stats{}, nil)
		trail.On("Recent", mock.Anything, recentActivityLimit).Return([]*models.AuditLog{}, nil)
		trail.On("GetStats").Return(audit.Stats{})

		w := serve(router, httptest.NewRequest(http.MethodGet, "/admin?notice=role_updated", nil), claimsFor(roles.RoleAdmin))

		assert.Contains(t, w.Body.String(), "User role updated.")
	})
}

func TestHandlePromote(t *testing.T) {
	t.Run("form preselects librarian", func(t *testing.T) {
		router, _, _ := setupAdminRouter(t)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/admin/promote", nil), claimsFor(roles.RoleAdmin))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `<option value="librarian" selected>`)
	})

	t.Run("invalid input re-renders", func(t *testing.T) {
		router, catalog, _ := setupAdminRouter(t)

		form := url.Values{"email": {"bob"}, "role": {"owner"}}
		w := serve(router, formRequest(http.MethodPost, "/admin/promote", form), claimsFor(roles.RoleAdmin))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "email must be a valid email")
		assert.Contains(t, w.Body.String(), "role must be one of: member, librarian, admin")
		catalog.AssertNotCalled(t, "SetUserRole", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("normalizes, forwards and audits", func(t *testing.T) {
		router, catalog, trail := setupAdminRouter(t)
		change := models.RoleChange{Email: "bob@example.com", Role: "librarian"}
		catalog.On("SetUserRole", mock.Anything, testBearer, change).Return(nil)
		trail.On("LogRoleChange", mock.Anything, "bob@example.com", "librarian").Return(nil)

		form := url.Values{"email": {" Bob@Example.com "}, "role": {"Librarian"}}
		w := serve(router, formRequest(http.MethodPost, "/admin/promote", form), claimsFor(roles.RoleAdmin))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/admin?notice=role_updated", w.Header().Get("Location"))
		catalog.AssertExpectations(t)
		trail.AssertExpectations(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		router, catalog, _ := setupAdminRouter(t)
		catalog.On("SetUserRole", mock.Anything, testBearer, mock.Anything).Return(services.ErrUserNotFound)

		form := url.Values{"email": {"ghost@example.com"}, "role": {"admin"}}
		w := serve(router, formRequest(http.MethodPost, "/admin/promote", form), claimsFor(roles.RoleAdmin))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "user not found")
	})
}

func TestHandleSetRole(t *testing.T) {
	post := func(router chi.Router, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/roles", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(router, req, claimsFor(roles.RoleAdmin))
	}

	t.Run("success", func(t *testing.T) {
		router, catalog, trail := setupAdminRouter(t)
		change := models.RoleChange{Email: "bob@example.com", Role: "admin"}
		catalog.On("SetUserRole", mock.Anything, testBearer, change).Return(nil)
		trail.On("LogRoleChange", mock.Anything, "bob@example.com", "admin").Return(nil)

		w := post(router, `{"email":"BOB@example.com","role":"admin"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Data SetRoleResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "bob@example.com", response.Data.Email)
		assert.Equal(t, "admin", response.Data.Role)
		trail.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		router, _, _ := setupAdminRouter(t)

		w := post(router, `{`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failure lists fields", func(t *testing.T) {
		router, _, _ := setupAdminRouter(t)

		w := post(router, `{"email":"bob@example.com","role":"owner"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		details := response["details"].(map[string]interface{})
		assert.Contains(t, details, "role")
	})

	t.Run("upstream denial is passed through", func(t *testing.T) {
		router, catalog, trail := setupAdminRouter(t)
		catalog.On("SetUserRole", mock.Anything, testBearer, mock.Anything).Return(services.ErrForbidden)

		w := post(router, `{"email":"bob@example.com","role":"admin"}`)

		assert.Equal(t, http.StatusForbidden, w.Code)
		trail.AssertNotCalled(t, "LogRoleChange", mock.Anything, mock.Anything, mock.Anything)
	})
}
