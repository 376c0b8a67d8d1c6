package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/upb/library-portal/internal/roles"
)

var (
	// ErrInvalidToken is returned when the token is malformed, tampered with or expired
	ErrInvalidToken = errors.New("invalid session token")

	// ErrRevoked is returned when the token was revoked by sign-out
	ErrRevoked = errors.New("session revoked")

	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")
)

// Identity is what the identity provider tells us about a user.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Claims is the payload of a session token. The role is fixed at sign-in
// and never changes for the token's lifetime.
type Claims struct {
	jwt.RegisteredClaims
	Email   string     `json:"email"`
	Name    string     `json:"name,omitempty"`
	Picture string     `json:"picture,omitempty"`
	Role    roles.Role `json:"role"`
	// Bearer is the upstream credential forwarded to the catalog API.
	Bearer string `json:"bearer,omitempty"`
}

// Expiry returns the expiry, or the zero time when unset.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// DisplayName prefers the profile name over the e-mail address.
func (c *Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Email
}

func (c *Claims) validate() error {
	if c.Subject == "" {
		return fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if c.Email == "" {
		return fmt.Errorf("%w: email", ErrMissingClaim)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: jti", ErrMissingClaim)
	}
	if !c.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return nil
}
