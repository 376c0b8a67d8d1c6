package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/library-portal/middleware"
	"github.com/upb/library-portal/models"
	"github.com/upb/library-portal/services"
	"github.com/upb/library-portal/services/audit"
	"github.com/upb/library-portal/views"
)

// CatalogService is the remote library API. Every call carries the
// viewer's bearer credential.
type CatalogService interface {
	ListBooks(ctx context.Context, bearer, search string) ([]models.Book, error)
	GetBook(ctx context.Context, bearer string, id int) (*models.Book, error)
	Stats(ctx context.Context, bearer string) (*models.Stats, error)
	CreateBook(ctx context.Context, bearer string, in models.BookInput) (*models.Book, error)
	UpdateBook(ctx context.Context, bearer string, id int, in models.BookInput) (*models.Book, error)
	DeleteBook(ctx context.Context, bearer string, id int) error
	Checkout(ctx context.Context, bearer string, id int, in models.CheckoutInput) error
	Checkin(ctx context.Context, bearer string, id int) error
	SetUserRole(ctx context.Context, bearer string, change models.RoleChange) error
}

// AuditTrail records mutations and serves the admin dashboard.
type AuditTrail interface {
	LogBookMutation(actor audit.Actor, action models.AuditAction, bookID string, details interface{}) error
	LogRoleChange(actor audit.Actor, targetEmail, newRole string) error
	Recent(ctx context.Context, limit int) ([]*models.AuditLog, error)
	GetStats() audit.Stats
}

// Renderer writes HTML pages.
type Renderer interface {
	Render(w http.ResponseWriter, status int, page string, data views.PageData)
}

// pages holds what every HTML handler needs.
type pages struct {
	renderer   Renderer
	cookieName string
	logger     *zap.Logger
}

// data builds the common page data for r.
func (p *pages) data(r *http.Request, title string, content interface{}) views.PageData {
	return views.PageData{
		Title:     title,
		User:      middleware.GetClaimsFromContext(r.Context()),
		CSRFToken: middleware.CSRFToken(r),
		CSRFField: middleware.CSRFFieldName,
		Content:   content,
	}
}

// fail shows a catalog error. An expired upstream session signs the user
// out; a missing book gets the error page; anything else re-renders page
// with an error banner.
func (p *pages) fail(w http.ResponseWriter, r *http.Request, err error, page string, data views.PageData) {
	log := p.logger.With(zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))

	switch {
	case services.IsUnauthorizedError(err):
		log.Info("catalog rejected session, signing out", zap.Error(err))
		middleware.ClearSessionCookie(w, p.cookieName)
		callback := "/"
		if r.Method == http.MethodGet {
			callback = r.URL.RequestURI()
		}
		http.Redirect(w, r, middleware.SignInURL(callback), redirectStatus(r))
		return
	case services.IsNotFoundError(err):
		p.notFound(w, r, services.GetErrorMessage(err))
		return
	}

	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		log.Warn("catalog request failed", zap.Error(err))
	}
	data.Error = displayMessage(err)
	p.renderer.Render(w, status, page, data)
}

func (p *pages) notFound(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Page not found"
	}
	p.renderer.Render(w, http.StatusNotFound, views.PageError, p.data(r, message, nil))
}

// bearer returns the upstream credential of the signed-in user.
func bearer(r *http.Request) string {
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		return claims.Bearer
	}
	return ""
}

// bookID parses the {id} URL parameter.
func bookID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func redirectStatus(r *http.Request) int {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

// displayMessage is the banner text for err; internal causes stay hidden.
func displayMessage(err error) string {
	if services.IsInternalError(err) || services.GetErrorType(err) == "" {
		return "An unexpected error occurred"
	}
	if msg := services.GetErrorMessage(err); msg != "" {
		return msg
	}
	return "The catalog request failed"
}
