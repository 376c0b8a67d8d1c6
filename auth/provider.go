// Package auth implements Google sign-in: the OpenID Connect identity
// provider and the login, callback and logout endpoints.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/upb/library-portal/config"
	"github.com/upb/library-portal/session"
)

const discoveryTimeout = 10 * time.Second

// ErrNotConfigured is returned by providers that cannot sign anyone in.
var ErrNotConfigured = errors.New("identity provider not configured")

// Result is a verified sign-in.
type Result struct {
	Identity      session.Identity
	EmailVerified bool
	// Nonce echoes the nonce sent with the authorization request.
	Nonce string
	// FromUserInfo is set when the token response carried no ID token and
	// the identity came from the userinfo endpoint. There is no nonce then.
	FromUserInfo bool
	// Bearer is forwarded to the catalog API as the user's credential: the
	// ID token, or the access token when there is none.
	Bearer string
}

// IdentityProvider runs the authorization code flow.
type IdentityProvider interface {
	AuthCodeURL(state, nonce string) (string, error)
	Exchange(ctx context.Context, code string) (*Result, error)
}

// googleClaims holds the subset of Google ID token claims we use.
type googleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Nonce         string `json:"nonce"`
}

// GoogleProvider signs users in with Google via OpenID Connect. Discovery
// runs on first use so the server can start while Google is unreachable.
type GoogleProvider struct {
	cfg config.GoogleConfig

	mu       sync.Mutex
	provider *oidc.Provider
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider creates a provider for the configured OAuth client.
func NewGoogleProvider(cfg config.GoogleConfig) *GoogleProvider {
	return &GoogleProvider{cfg: cfg}
}

func (g *GoogleProvider) init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.provider != nil {
		return nil
	}

	provider, err := oidc.NewProvider(ctx, g.cfg.IssuerURL)
	if err != nil {
		return fmt.Errorf("oidc discovery for %s: %w", g.cfg.IssuerURL, err)
	}
	g.provider = provider
	g.oauth = &oauth2.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		RedirectURL:  g.cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	g.verifier = provider.Verifier(&oidc.Config{ClientID: g.cfg.ClientID})
	return nil
}

// AuthCodeURL returns Google's consent URL for state and nonce.
func (g *GoogleProvider) AuthCodeURL(state, nonce string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancel()
	if err := g.init(ctx); err != nil {
		return "", err
	}
	return g.oauth.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// Exchange trades the code for tokens and verifies the ID token.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*Result, error) {
	if err := g.init(ctx); err != nil {
		return nil, err
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return g.userInfo(ctx, token)
	}
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}
	if claims.Sub == "" || claims.Email == "" {
		return nil, errors.New("id token lacks sub or email")
	}

	return &Result{
		Identity: session.Identity{
			Subject: claims.Sub,
			Email:   claims.Email,
			Name:    claims.Name,
			Picture: claims.Picture,
		},
		EmailVerified: claims.EmailVerified,
		Nonce:         claims.Nonce,
		Bearer:        rawIDToken,
	}, nil
}

// userInfo resolves the identity with the access token alone.
func (g *GoogleProvider) userInfo(ctx context.Context, token *oauth2.Token) (*Result, error) {
	if token.AccessToken == "" {
		return nil, errors.New("token response has neither id_token nor access_token")
	}

	info, err := g.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}

	var claims googleClaims
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extract userinfo claims: %w", err)
	}
	if info.Subject == "" || info.Email == "" {
		return nil, errors.New("userinfo lacks sub or email")
	}

	return &Result{
		Identity: session.Identity{
			Subject: info.Subject,
			Email:   info.Email,
			Name:    claims.Name,
			Picture: claims.Picture,
		},
		EmailVerified: info.EmailVerified,
		FromUserInfo:  true,
		Bearer:        token.AccessToken,
	}, nil
}

// DisabledProvider rejects every sign-in. It stands in when no OAuth client
// is configured so the catalog can still be browsed anonymously.
type DisabledProvider struct{}

func (DisabledProvider) AuthCodeURL(string, string) (string, error) {
	return "", ErrNotConfigured
}

func (DisabledProvider) Exchange(context.Context, string) (*Result, error) {
	return nil, ErrNotConfigured
}
