package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/services/audit"
	"github.com/upb/library-portal/session"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ClaimsKey is the context key for session claims
	ClaimsKey contextKey = "claims"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves session claims from context
func GetClaimsFromContext(ctx context.Context) *session.Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*session.Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds session claims to the context
func WithClaims(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// RoleFromContext returns the signed-in user's role, or roles.RoleNone for
// anonymous requests.
func RoleFromContext(ctx context.Context) roles.Role {
	if claims := GetClaimsFromContext(ctx); claims != nil {
		return claims.Role
	}
	return roles.RoleNone
}

// ActorFromRequest describes the caller for the audit trail.
func ActorFromRequest(r *http.Request) audit.Actor {
	actor := audit.Actor{
		RequestID: GetRequestIDFromContext(r.Context()),
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if claims := GetClaimsFromContext(r.Context()); claims != nil {
		actor.Email = claims.Email
		actor.Role = claims.Role.String()
	}
	return actor
}

// clientIP strips the port from RemoteAddr. chi's RealIP rewrites
// RemoteAddr from X-Forwarded-For only when proxy headers are trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
