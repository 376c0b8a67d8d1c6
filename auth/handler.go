package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/middleware"
	"github.com/upb/library-portal/services/audit"
	"github.com/upb/library-portal/session"
	"github.com/upb/library-portal/utils"
)

const (
	// StateCookieName holds the OAuth state between login and callback
	StateCookieName = "oauth_state"
	// NonceCookieName holds the OIDC nonce between login and callback
	NonceCookieName = "oidc_nonce"
	// CallbackCookieName holds where to go after a successful sign-in
	CallbackCookieName = "auth_callback"

	flowCookieMaxAge = 300

	// ErrorPath renders sign-in failures.
	ErrorPath = "/auth/error"
)

// Error codes shown on the sign-in error page.
const (
	ErrorCodeAccessDenied  = "AccessDenied"
	ErrorCodeOAuthCallback = "OAuthCallback"
	ErrorCodeConfiguration = "Configuration"
)

// RoleAssigner maps a verified e-mail to a role.
type RoleAssigner interface {
	AssignRole(email string) roles.Role
}

// SessionIssuer issues and revokes session tokens.
type SessionIssuer interface {
	Issue(id session.Identity, role roles.Role, bearer string) (string, *session.Claims, error)
	Revoke(ctx context.Context, claims *session.Claims) error
	TTL() time.Duration
}

// SessionAuditor records sign-ins and sign-outs.
type SessionAuditor interface {
	LogSignIn(actor audit.Actor) error
	LogSignOut(actor audit.Actor) error
}

// CookieConfig controls the session cookie written on sign-in.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler handles the sign-in flow (login, callback, logout).
type Handler struct {
	provider IdentityProvider
	assigner RoleAssigner
	sessions SessionIssuer
	auditor  SessionAuditor
	cookie   CookieConfig
	logger   *zap.Logger
}

// NewHandler creates a new auth handler. auditor may be nil.
func NewHandler(provider IdentityProvider, assigner RoleAssigner, sessions SessionIssuer, auditor SessionAuditor, cookie CookieConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		provider: provider,
		assigner: assigner,
		sessions: sessions,
		auditor:  auditor,
		cookie:   cookie,
		logger:   logger,
	}
}

// HandleLogin starts the authorization code flow. An optional callbackUrl
// query parameter, when it is a local path, is where the user lands after
// signing in.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken()
	if err != nil {
		h.logger.Error("failed to generate state", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to initiate login")
		return
	}
	nonce, err := randomToken()
	if err != nil {
		h.logger.Error("failed to generate nonce", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to initiate login")
		return
	}

	authURL, err := h.provider.AuthCodeURL(state, nonce)
	if err != nil {
		h.logger.Error("identity provider unavailable", zap.Error(err))
		code := ErrorCodeOAuthCallback
		if errors.Is(err, ErrNotConfigured) {
			code = ErrorCodeConfiguration
		}
		redirectToError(w, r, code)
		return
	}

	h.setFlowCookie(w, StateCookieName, state)
	h.setFlowCookie(w, NonceCookieName, nonce)
	if cb := r.URL.Query().Get("callbackUrl"); middleware.IsLocalPath(cb) {
		h.setFlowCookie(w, CallbackCookieName, cb)
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback verifies the provider response, assigns the role and
// starts a session.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Info("sign-in declined by provider", zap.String("error", providerErr))
		code := ErrorCodeOAuthCallback
		if providerErr == "access_denied" {
			code = ErrorCodeAccessDenied
		}
		redirectToError(w, r, code)
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" {
		_ = utils.WriteBadRequest(w, "Missing authorization code", nil)
		return
	}
	if state == "" {
		_ = utils.WriteBadRequest(w, "Missing state parameter", nil)
		return
	}

	stateCookie, err := r.Cookie(StateCookieName)
	h.clearFlowCookie(w, StateCookieName)
	if err != nil || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		_ = utils.WriteBadRequest(w, "Invalid or expired state", nil)
		return
	}

	result, err := h.provider.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("token exchange failed", zap.Error(err))
		redirectToError(w, r, ErrorCodeOAuthCallback)
		return
	}

	nonceCookie, err := r.Cookie(NonceCookieName)
	h.clearFlowCookie(w, NonceCookieName)
	if !result.FromUserInfo &&
		(err != nil || subtle.ConstantTimeCompare([]byte(nonceCookie.Value), []byte(result.Nonce)) != 1) {
		_ = utils.WriteBadRequest(w, "Invalid nonce", nil)
		return
	}

	if !result.EmailVerified {
		h.logger.Info("rejecting unverified e-mail", zap.String("email", result.Identity.Email))
		redirectToError(w, r, ErrorCodeAccessDenied)
		return
	}

	role := h.assigner.AssignRole(result.Identity.Email)
	token, claims, err := h.sessions.Issue(result.Identity, role, result.Bearer)
	if err != nil {
		h.logger.Error("failed to issue session", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to start session")
		return
	}

	middleware.SetSessionCookie(w, h.cookie.Name, token, int(h.sessions.TTL().Seconds()), h.cookie.Secure)

	if h.auditor != nil {
		actor := middleware.ActorFromRequest(r)
		actor.Email = claims.Email
		actor.Role = claims.Role.String()
		if err := h.auditor.LogSignIn(actor); err != nil {
			h.logger.Warn("failed to audit sign-in", zap.Error(err))
		}
	}

	redirectTo := "/"
	if cb, err := r.Cookie(CallbackCookieName); err == nil && middleware.IsLocalPath(cb.Value) {
		redirectTo = cb.Value
	}
	h.clearFlowCookie(w, CallbackCookieName)

	http.Redirect(w, r, redirectTo, http.StatusFound)
}

// HandleLogout revokes the current session and clears the cookie.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		if err := h.sessions.Revoke(r.Context(), claims); err != nil {
			h.logger.Warn("failed to revoke session", zap.Error(err))
		}
		if h.auditor != nil {
			if err := h.auditor.LogSignOut(middleware.ActorFromRequest(r)); err != nil {
				h.logger.Warn("failed to audit sign-out", zap.Error(err))
			}
		}
	}

	middleware.ClearSessionCookie(w, h.cookie.Name)

	status := http.StatusFound
	if r.Method == http.MethodPost {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, "/", status)
}

func (h *Handler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   flowCookieMaxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirectToError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, ErrorPath+"?error="+url.QueryEscape(code), http.StatusFound)
}

// randomToken returns 32 random bytes, hex-encoded.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
