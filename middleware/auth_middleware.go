package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/library-portal/internal/observability"
	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/services/audit"
	"github.com/upb/library-portal/session"
	"github.com/upb/library-portal/utils"
)

const (
	// SignInPath is where page guards send anonymous users.
	SignInPath = "/auth/signin"
	// UnauthorizedRedirect is where page guards send under-privileged users.
	UnauthorizedRedirect = "/?error=unauthorized"
)

// Access decision outcomes, used as metric labels.
const (
	outcomeGranted         = "granted"
	outcomeUnauthenticated = "unauthenticated"
	outcomeUnauthorized    = "unauthorized"
)

// TokenValidator defines the interface for validating session tokens
type TokenValidator interface {
	// ValidateToken validates a session token and returns claims
	ValidateToken(ctx context.Context, token string) (*session.Claims, error)
}

// DenialAuditor records rejected requests.
type DenialAuditor interface {
	LogAccessDenied(actor audit.Actor, path, requirement string, statusCode int) error
}

// AuthMiddleware loads the session and enforces role guards
type AuthMiddleware struct {
	validator  TokenValidator
	cookieName string
	auditor    DenialAuditor
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AuthOption configures an AuthMiddleware.
type AuthOption func(*AuthMiddleware)

// WithAuditor records every denial in the audit trail.
func WithAuditor(a DenialAuditor) AuthOption {
	return func(m *AuthMiddleware) { m.auditor = a }
}

// WithMetrics counts every access decision.
func WithMetrics(metrics *observability.Metrics) AuthOption {
	return func(m *AuthMiddleware) { m.metrics = metrics }
}

// NewAuthMiddleware creates a new AuthMiddleware reading the session from
// the Authorization header or the named cookie.
func NewAuthMiddleware(validator TokenValidator, cookieName string, logger *zap.Logger, opts ...AuthOption) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AuthMiddleware{
		validator:  validator,
		cookieName: cookieName,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadSession attaches the caller's claims to the context when the token is
// valid and not revoked. It never rejects a request.
func (m *AuthMiddleware) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, fromCookie := m.extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Debug("ignoring session token",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.Error(err))
			if fromCookie {
				ClearSessionCookie(w, m.cookieName)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// RequireAuth rejects anonymous requests with a JSON 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return m.RequireRole(roles.Requirement{})(next)
}

// RequireRole enforces req on a JSON endpoint: 401 without a session,
// 403 when the role is insufficient.
func (m *AuthMiddleware) RequireRole(req roles.Requirement) func(http.Handler) http.Handler {
	guard := roles.NewGuard(req, "Insufficient permissions")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := m.check(r, guard)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, roles.ErrUnauthenticated):
				_ = utils.WriteUnauthorized(w, "Authentication required")
			default:
				_ = utils.WriteRoleRequired(w, guard.ErrorMessage, req.String())
			}
		})
	}
}

// RequirePage enforces guard on an HTML route. Anonymous users are sent to
// sign-in with a callback to the current page; under-privileged users go
// back home with an error flag.
func (m *AuthMiddleware) RequirePage(guard roles.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := m.check(r, guard)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			status := http.StatusFound
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				status = http.StatusSeeOther
			}
			if errors.Is(err, roles.ErrUnauthenticated) {
				http.Redirect(w, r, SignInURL(r.URL.RequestURI()), status)
				return
			}
			http.Redirect(w, r, UnauthorizedRedirect, status)
		})
	}
}

// check evaluates guard against the request's role, then records the
// decision.
func (m *AuthMiddleware) check(r *http.Request, guard roles.Guard) error {
	role := RoleFromContext(r.Context())
	err := guard.Check(role)
	requirement := guard.Requirement.String()

	outcome := outcomeGranted
	status := 0
	switch {
	case err == nil:
	case errors.Is(err, roles.ErrUnauthenticated):
		outcome, status = outcomeUnauthenticated, http.StatusUnauthorized
	default:
		outcome, status = outcomeUnauthorized, http.StatusForbidden
	}

	if m.metrics != nil {
		m.metrics.AccessDecisions.WithLabelValues(requirement, outcome).Inc()
	}
	if err == nil {
		return nil
	}

	m.logger.Info("access denied",
		zap.String("request_id", GetRequestIDFromContext(r.Context())),
		zap.String("path", r.URL.Path),
		zap.String("role", role.String()),
		zap.String("required_role", requirement),
		zap.String("outcome", outcome))

	if m.auditor != nil {
		if auditErr := m.auditor.LogAccessDenied(ActorFromRequest(r), r.URL.Path, requirement, status); auditErr != nil {
			m.logger.Warn("failed to audit access denial", zap.Error(auditErr))
		}
	}
	return err
}

// SignInURL builds the sign-in link that returns to callback afterwards.
func SignInURL(callback string) string {
	if !IsLocalPath(callback) || callback == "/" {
		return SignInPath
	}
	return SignInPath + "?callbackUrl=" + url.QueryEscape(callback)
}

// IsLocalPath reports whether p is a same-origin relative path, which is
// all that callback redirects accept.
func IsLocalPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// SetSessionCookie writes the session cookie.
func SetSessionCookie(w http.ResponseWriter, name, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// extractToken reads the Authorization header first, then the session
// cookie. fromCookie reports where the token came from.
func (m *AuthMiddleware) extractToken(r *http.Request) (token string, fromCookie bool) {
	if token := extractBearerToken(r); token != "" {
		return token, false
	}
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
