// Package views renders the portal's HTML pages from embedded templates.
package views

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	PageIndex     = "index.html"
	PageBookForm  = "book_form.html"
	PageCheckout  = "checkout.html"
	PageAdmin     = "admin.html"
	PagePromote   = "promote.html"
	PageSignIn    = "signin.html"
	PageAuthError = "auth_error.html"
	PageError     = "error.html"
)

var pages = []string{PageIndex, PageBookForm, PageCheckout, PageAdmin, PagePromote, PageSignIn, PageAuthError, PageError}

// PageData is passed to every template.
type PageData struct {
	Title     string
	User      *session.Claims
	CSRFToken string
	CSRFField string
	Flash     string
	Error     string
	// Content holds the page-specific view model.
	Content interface{}
}

// Role is the viewer's role, empty when anonymous.
func (d PageData) Role() roles.Role {
	if d.User == nil {
		return roles.RoleNone
	}
	return d.User.Role
}

// Denial describes a permission fallback block.
type Denial struct {
	SignIn  bool
	Title   string
	Message string
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

// New parses all embedded templates.
func New(logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(pages)), logger: logger}
	for _, page := range pages {
		tmpl, err := template.New("layout.html").Funcs(Funcs()).ParseFS(templateFS,
			"templates/layout.html", "templates/partials.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render writes page with status. Templates are executed into a buffer so a
// failure never leaves a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) {
	tmpl, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown page", zap.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		r.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Funcs returns the template helpers.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"can": func(role roles.Role, minRole string) bool {
			return roles.EvaluateAccess(role, roles.MinRole(roles.ParseRole(minRole)))
		},
		"isAdmin":            roles.IsAdmin,
		"isLibrarianOrAdmin": roles.IsLibrarianOrAdmin,
		"guard":              guard,
		"roleBadge": func(role interface{}) string {
			return roleBadge(roles.ParseRole(fmt.Sprint(role)))
		},
		"upper": strings.ToUpper,
		"title": titleCase,
		"date":  formatDate,
		"overdue": func(due *time.Time) bool {
			return due != nil && time.Now().After(*due)
		},
	}
}

// guard runs a named guard against role and returns the fallback to show,
// or nil when access is granted.
func guard(role roles.Role, name string) *Denial {
	var g roles.Guard
	switch name {
	case "admin":
		g = roles.AdminOnly()
	case "librarian":
		g = roles.LibrarianOrAdmin()
	case "member":
		g = roles.MemberOnly()
	default:
		g = roles.AuthenticatedOnly()
	}
	return DenialFor(g, role)
}

// DenialFor converts a guard check into the fallback block, or nil.
func DenialFor(g roles.Guard, role roles.Role) *Denial {
	err := g.Check(role)
	if err == nil {
		return nil
	}
	var denied *roles.AccessDeniedError
	if errors.As(err, &denied) {
		return &Denial{Title: denied.Message, Message: denied.Detail()}
	}
	return &Denial{SignIn: true, Title: roles.AccessDeniedTitle, Message: roles.SignInMessage}
}

func roleBadge(role roles.Role) string {
	switch role {
	case roles.RoleAdmin:
		return "badge badge-admin"
	case roles.RoleLibrarian:
		return "badge badge-librarian"
	case roles.RoleMember:
		return "badge badge-member"
	default:
		return "badge"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}
