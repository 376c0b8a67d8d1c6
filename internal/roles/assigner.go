package roles

import (
	"strings"

	"go.uber.org/zap"
)

// AssignmentObserver is notified of every assignment, e.g. to count them.
type AssignmentObserver func(email string, role Role)

// Assigner maps e-mail addresses to roles using two allow-lists.
// It is immutable after construction and safe for concurrent use.
type Assigner struct {
	admins     map[string]struct{}
	librarians map[string]struct{}
	logger     *zap.Logger
	observer   AssignmentObserver
}

// AssignerOption configures an Assigner.
type AssignerOption func(*Assigner)

// WithObserver registers a callback invoked after each assignment.
func WithObserver(fn AssignmentObserver) AssignerOption {
	return func(a *Assigner) {
		a.observer = fn
	}
}

// NewAssigner builds an Assigner. Entries are trimmed and lowercased;
// blank entries are dropped. A nil logger disables audit lines.
func NewAssigner(adminEmails, librarianEmails []string, logger *zap.Logger, opts ...AssignerOption) *Assigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Assigner{
		admins:     toSet(adminEmails),
		librarians: toSet(librarianEmails),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AssignRole resolves the role for email. Admin membership wins over
// librarian membership; everything else, including the empty string,
// is a member.
func (a *Assigner) AssignRole(email string) Role {
	normalized := normalizeEmail(email)

	role := RoleMember
	if normalized != "" {
		if _, ok := a.admins[normalized]; ok {
			role = RoleAdmin
		} else if _, ok := a.librarians[normalized]; ok {
			role = RoleLibrarian
		}
	}

	a.logger.Info("Assigning role",
		zap.String("email", normalized),
		zap.String("role", string(role)),
	)
	if a.observer != nil {
		a.observer(normalized, role)
	}
	return role
}

// Counts returns the size of the admin and librarian lists.
func (a *Assigner) Counts() (admins, librarians int) {
	return len(a.admins), len(a.librarians)
}

// ParseAllowList splits a comma-separated list of addresses.
func ParseAllowList(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if e := normalizeEmail(part); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if n := normalizeEmail(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
