package views

import (
	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/models"
	"github.com/upb/library-portal/services/audit"
)

// IndexContent backs the books page.
type IndexContent struct {
	Books  []models.Book
	Stats  *models.Stats
	Search string
}

// BookFormContent backs the add and edit forms. BookID is zero when adding.
type BookFormContent struct {
	BookID int
	Input  models.BookInput
	Errors map[string]string
}

// CheckoutContent backs the checkout form.
type CheckoutContent struct {
	Book   *models.Book
	Input  models.CheckoutInput
	Errors map[string]string
}

// AdminContent backs the admin dashboard.
type AdminContent struct {
	Stats          *models.Stats
	AdminCount     int
	LibrarianCount int
	Recent         []*models.AuditLog
	Audit          audit.Stats
}

// PromoteContent backs the role change form.
type PromoteContent struct {
	Input  models.RoleChange
	Roles  []roles.Role
	Errors map[string]string
}

// SignInContent backs the sign-in page.
type SignInContent struct {
	CallbackURL string
	Enabled     bool
}

// AuthErrorContent backs the sign-in error page.
type AuthErrorContent struct {
	Code    string
	Message string
}

// AuthErrorMessage explains a sign-in error code.
func AuthErrorMessage(code string) string {
	switch code {
	case "AccessDenied":
		return "You do not have permission to sign in. Make sure your Google account has a verified e-mail address."
	case "Configuration":
		return "Sign-in is not configured on this server."
	case "OAuthCallback":
		return "Google sign-in could not be completed. Please try again."
	default:
		return "An error occurred during sign-in. Please try again."
	}
}
