package repositories

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/upb/library-portal/models"
)

// LogAuditRepository writes audit entries to the structured log and keeps
// the most recent ones in memory for the admin dashboard. It is used when
// no audit database is configured.
type LogAuditRepository struct {
	logger *zap.Logger

	mu     sync.Mutex
	recent []*models.AuditLog
	next   int
	full   bool
}

// NewLogAuditRepository keeps up to capacity entries in memory.
func NewLogAuditRepository(logger *zap.Logger, capacity int) *LogAuditRepository {
	if capacity < 1 {
		capacity = 1
	}
	return &LogAuditRepository{
		logger: logger,
		recent: make([]*models.AuditLog, capacity),
	}
}

func (r *LogAuditRepository) Insert(_ context.Context, log *models.AuditLog) error {
	fields := []zap.Field{
		zap.String("audit_id", log.ID.String()),
		zap.String("action", string(log.Action)),
		zap.String("actor_email", log.ActorEmail),
		zap.String("actor_role", log.ActorRole),
		zap.String("resource_type", log.ResourceType),
		zap.String("resource_id", log.ResourceID),
		zap.String("request_id", log.RequestID),
		zap.String("ip_address", log.IPAddress),
	}
	if len(log.Details) > 0 {
		fields = append(fields, zap.ByteString("details", log.Details))
	}
	if log.StatusCode != nil {
		fields = append(fields, zap.Int("status_code", *log.StatusCode))
	}
	r.logger.Info("audit", fields...)

	r.mu.Lock()
	r.recent[r.next] = log
	r.next = (r.next + 1) % len(r.recent)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return nil
}

func (r *LogAuditRepository) ListRecent(_ context.Context, limit int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.recent)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]*models.AuditLog, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.next - 1 - i + len(r.recent)) % len(r.recent)
		out = append(out, r.recent[idx])
	}
	return out, nil
}
