package repositories

import (
	"context"

	"github.com/upb/library-portal/models"
)

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListRecent returns the newest entries first, at most limit of them
	ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error)
}
