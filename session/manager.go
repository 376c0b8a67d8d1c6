package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/upb/library-portal/internal/roles"
)

// Manager issues and validates HS256 session tokens.
type Manager struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

// NewManager creates a Manager. A nil revoker disables revocation checks.
func NewManager(secret, issuer string, ttl time.Duration, revoker Revoker) *Manager {
	return &Manager{
		secret:  []byte(secret),
		issuer:  issuer,
		ttl:     ttl,
		revoker: revoker,
		now:     time.Now,
	}
}

// TTL returns the lifetime of issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new session for id with the given role and upstream bearer.
func (m *Manager) Issue(id Identity, role roles.Role, bearer string) (string, *Claims, error) {
	if !role.Valid() {
		return "", nil, fmt.Errorf("issue session: invalid role %q", role)
	}
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.Subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Email:   id.Email,
		Name:    id.Name,
		Picture: id.Picture,
		Role:    role,
		Bearer:  bearer,
	}
	if err := claims.validate(); err != nil {
		return "", nil, fmt.Errorf("issue session: %w", err)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, algorithm, issuer, expiry and required claims.
// It does not consult the revocation store.
func (m *Manager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := claims.validate(); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateToken parses token and rejects it when revoked.
func (m *Manager) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	claims, err := m.Parse(token)
	if err != nil {
		return nil, err
	}
	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke invalidates claims until they would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revoker == nil || claims == nil {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.ID, claims.Expiry())
}
