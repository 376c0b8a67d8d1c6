package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/middleware"
	"github.com/upb/library-portal/utils"
	"github.com/upb/library-portal/views"
)

// SessionHandler serves the sign-in pages and the session API.
type SessionHandler struct {
	pages
	signInEnabled bool
}

// NewSessionHandler creates a new SessionHandler. signInEnabled is false
// when no identity provider is configured.
func NewSessionHandler(renderer Renderer, signInEnabled bool, cookieName string, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		pages:         pages{renderer: renderer, cookieName: cookieName, logger: logger},
		signInEnabled: signInEnabled,
	}
}

// HandleSignIn handles GET /auth/signin
func (h *SessionHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	callback := r.URL.Query().Get("callbackUrl")
	if !middleware.IsLocalPath(callback) {
		callback = ""
	}

	if middleware.GetClaimsFromContext(r.Context()) != nil {
		target := callback
		if target == "" {
			target = "/"
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	content := views.SignInContent{CallbackURL: callback, Enabled: h.signInEnabled}
	h.renderer.Render(w, http.StatusOK, views.PageSignIn, h.data(r, "Sign in", content))
}

// HandleAuthError handles GET /auth/error
func (h *SessionHandler) HandleAuthError(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("error")
	content := views.AuthErrorContent{Code: code, Message: views.AuthErrorMessage(code)}
	h.renderer.Render(w, http.StatusUnauthorized, views.PageAuthError, h.data(r, "Sign-in Error", content))
}

// SessionResponse is the response body for GET /api/v1/session
type SessionResponse struct {
	Email              string    `json:"email"`
	Name               string    `json:"name,omitempty"`
	Picture            string    `json:"picture,omitempty"`
	Role               string    `json:"role"`
	IsAdmin            bool      `json:"is_admin"`
	IsLibrarianOrAdmin bool      `json:"is_librarian_or_admin"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// HandleSession handles GET /api/v1/session
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	_ = utils.WriteOK(w, SessionResponse{
		Email:              claims.Email,
		Name:               claims.Name,
		Picture:            claims.Picture,
		Role:               claims.Role.String(),
		IsAdmin:            roles.IsAdmin(claims.Role),
		IsLibrarianOrAdmin: roles.IsLibrarianOrAdmin(claims.Role),
		ExpiresAt:          claims.Expiry(),
	})
}

// EvaluateAccessRequest asks whether the caller satisfies a requirement.
// AllowedRoles takes precedence over MinRole when both are given.
type EvaluateAccessRequest struct {
	MinRole      string   `json:"min_role" validate:"omitempty,oneof=member librarian admin"`
	AllowedRoles []string `json:"allowed_roles" validate:"omitempty,dive,oneof=member librarian admin"`
}

// EvaluateAccessResponse is the response body for POST /api/v1/access/evaluate
type EvaluateAccessResponse struct {
	Allowed     bool   `json:"allowed"`
	Role        string `json:"role"`
	Requirement string `json:"requirement"`
}

// HandleEvaluateAccess handles POST /api/v1/access/evaluate
func (h *SessionHandler) HandleEvaluateAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EvaluateAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	requirement := roles.MinRole(roles.ParseRole(req.MinRole))
	if len(req.AllowedRoles) > 0 {
		allowed := make([]roles.Role, len(req.AllowedRoles))
		for i, name := range req.AllowedRoles {
			allowed[i] = roles.ParseRole(name)
		}
		requirement = roles.AnyOf(allowed...)
	}

	role := middleware.RoleFromContext(ctx)
	_ = utils.WriteOK(w, EvaluateAccessResponse{
		Allowed:     roles.EvaluateAccess(role, requirement),
		Role:        role.String(),
		Requirement: requirement.String(),
	})
}

// HandleNotFound renders the HTML 404 page.
func (h *SessionHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.notFound(w, r, "Page not found")
}
