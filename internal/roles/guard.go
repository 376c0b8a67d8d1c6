package roles

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when a check needs a user and there is none.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrUnauthorized is returned when the user's role is insufficient.
	ErrUnauthorized = errors.New("insufficient role")
)

const (
	SignInMessage      = "Please sign in to access this content."
	AccessDeniedTitle  = "Access Denied"
	defaultDenyMessage = "You don't have permission to view this content."
)

// AccessDeniedError carries the details needed to render a denial.
type AccessDeniedError struct {
	Role        Role
	Requirement Requirement
	Message     string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s: role %q does not satisfy %s", e.Message, e.Role, e.Requirement)
}

func (e *AccessDeniedError) Unwrap() error {
	return ErrUnauthorized
}

// Detail is the user-facing explanation, e.g.
// "You don't have permission to view this content. Required role: admin".
func (e *AccessDeniedError) Detail() string {
	return fmt.Sprintf("%s Required role: %s", defaultDenyMessage, e.Requirement)
}

// Guard gates a piece of content or a route.
type Guard struct {
	Requirement  Requirement
	RequireAuth  bool
	ErrorMessage string
}

// NewGuard returns a guard that requires authentication.
func NewGuard(req Requirement, message string) Guard {
	if message == "" {
		message = defaultDenyMessage
	}
	return Guard{Requirement: req, RequireAuth: true, ErrorMessage: message}
}

func AdminOnly() Guard {
	return NewGuard(MinRole(RoleAdmin), "Admin access required")
}

func LibrarianOrAdmin() Guard {
	return NewGuard(MinRole(RoleLibrarian), "Librarian or admin access required")
}

func MemberOnly() Guard {
	return NewGuard(MinRole(RoleMember), "Member access required")
}

func AuthenticatedOnly() Guard {
	return NewGuard(Requirement{}, "Authentication required")
}

// Check returns nil when role passes the guard. An absent role yields
// ErrUnauthenticated if the guard requires auth; otherwise the role is
// evaluated and a failure yields an *AccessDeniedError.
func (g Guard) Check(role Role) error {
	if !role.Valid() && g.RequireAuth {
		return ErrUnauthenticated
	}
	if EvaluateAccess(role, g.Requirement) {
		return nil
	}
	msg := g.ErrorMessage
	if msg == "" {
		msg = defaultDenyMessage
	}
	return &AccessDeniedError{Role: role, Requirement: g.Requirement, Message: msg}
}
