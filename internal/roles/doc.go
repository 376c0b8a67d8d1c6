// Package roles classifies users into the member < librarian < admin
// hierarchy and answers authorization questions against it.
//
// This package implements:
//   - Role assignment from configured e-mail allow-lists
//   - Rank comparison (HasRequiredRole, IsAdmin, IsLibrarianOrAdmin)
//   - Requirement evaluation (minimum role or a set of acceptable roles)
//   - Guards that turn a decision into ErrUnauthenticated / ErrUnauthorized
//
// Everything here is pure: callers pass the role in explicitly.
package roles
