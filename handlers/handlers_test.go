package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/middleware"
	"github.com/upb/library-portal/models"
	"github.com/upb/library-portal/services/audit"
	"github.com/upb/library-portal/session"
	"github.com/upb/library-portal/views"
)

const (
	testCookie = "library_session"
	testBearer = "upstream-token"
)

// MockCatalog is a mock implementation of CatalogService
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ListBooks(ctx context.Context, bearer, search string) ([]models.Book, error) {
	args := m.Called(ctx, bearer, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Book), args.Error(1)
}

func (m *MockCatalog) GetBook(ctx context.Context, bearer string, id int) (*models.Book, error) {
	args := m.Called(ctx, bearer, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Book), args.Error(1)
}

func (m *MockCatalog) Stats(ctx context.Context, bearer string) (*models.Stats, error) {
	args := m.Called(ctx, bearer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

func (m *MockCatalog) CreateBook(ctx context.Context, bearer string, in models.BookInput) (*models.Book, error) {
	args := m.Called(ctx, bearer, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Book), args.Error(1)
}

func (m *MockCatalog) UpdateBook(ctx context.Context, bearer string, id int, in models.BookInput) (*models.Book, error) {
	args := m.Called(ctx, bearer, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Book), args.Error(1)
}

func (m *MockCatalog) DeleteBook(ctx context.Context, bearer string, id int) error {
	return m.Called(ctx, bearer, id).Error(0)
}

func (m *MockCatalog) Checkout(ctx context.Context, bearer string, id int, in models.CheckoutInput) error {
	return m.Called(ctx, bearer, id, in).Error(0)
}

func (m *MockCatalog) Checkin(ctx context.Context, bearer string, id int) error {
	return m.Called(ctx, bearer, id).Error(0)
}

func (m *MockCatalog) SetUserRole(ctx context.Context, bearer string, change models.RoleChange) error {
	return m.Called(ctx, bearer, change).Error(0)
}

// MockAuditTrail is a mock implementation of AuditTrail
type MockAuditTrail struct {
	mock.Mock
}

func (m *MockAuditTrail) LogBookMutation(actor audit.Actor, action models.AuditAction, bookID string, details interface{}) error {
	return m.Called(actor, action, bookID, details).Error(0)
}

func (m *MockAuditTrail) LogRoleChange(actor audit.Actor, targetEmail, newRole string) error {
	return m.Called(actor, targetEmail, newRole).Error(0)
}

func (m *MockAuditTrail) Recent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *MockAuditTrail) GetStats() audit.Stats {
	return m.Called().Get(0).(audit.Stats)
}

type stubCounter struct{ admins, librarians int }

func (s stubCounter) Counts() (int, int) { return s.admins, s.librarians }

func newTestRenderer(t *testing.T) *views.Renderer {
	t.Helper()
	r, err := views.New(zap.NewNop())
	require.NoError(t, err)
	return r
}

func claimsFor(role roles.Role) *session.Claims {
	c := &session.Claims{Email: role.String() + "@example.com", Name: "Test " + role.String(), Role: role, Bearer: testBearer}
	c.ID = "jti-" + role.String()
	return c
}

// serve routes req through a chi mux so URL params resolve, with claims
// attached as the session middleware would.
func serve(router chi.Router, req *http.Request, claims *session.Claims) *httptest.ResponseRecorder {
	if claims != nil {
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
