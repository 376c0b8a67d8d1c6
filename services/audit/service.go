package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/library-portal/models"
	"github.com/upb/library-portal/repositories"
	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned when events are logged before Start or after Stop
	ErrNotStarted = errors.New("audit service not started")

	// ErrBufferFull is returned when the event was dropped
	ErrBufferFull = errors.New("audit event buffer full")
)

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// Actor identifies who performed an audited action and from where.
type Actor struct {
	Email     string
	Role      string
	RequestID string
	IPAddress string
	UserAgent string
}

// AuditService handles asynchronous audit logging
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	onDrop      func()
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int    // Size of the event buffer channel
	WorkerCount int    // Number of concurrent workers
	OnDrop      func() // Called for every dropped event, e.g. to count it
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		onDrop:      config.OnDrop,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service
// Waits for all pending events to be processed
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))
	close(s.eventChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. When the buffer is full the
// event is dropped and ErrBufferFull returned.
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("actor_email", event.Log.ActorEmail))
		if s.onDrop != nil {
			s.onDrop()
		}
		return ErrBufferFull
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)),
				zap.String("actor_email", event.Log.ActorEmail))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Recent returns the newest audit entries for the admin dashboard.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	return s.auditRepo.ListRecent(ctx, limit)
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// Convenience methods for logging common events

func (s *AuditService) record(action models.AuditAction, resourceType string, actor Actor) *models.AuditLog {
	return models.NewAuditLog(action, resourceType).
		WithActor(actor.Email, actor.Role).
		WithRequest(actor.RequestID, actor.IPAddress, actor.UserAgent)
}

// LogSignIn records a completed sign-in and the role it produced
func (s *AuditService) LogSignIn(actor Actor) error {
	log := s.record(models.AuditActionSignIn, "session", actor)
	log.WithDetails(map[string]string{"role": actor.Role})
	return s.LogEvent(&AuditEvent{Log: log})
}

// LogSignOut records a sign-out
func (s *AuditService) LogSignOut(actor Actor) error {
	return s.LogEvent(&AuditEvent{Log: s.record(models.AuditActionSignOut, "session", actor)})
}

// LogAccessDenied records a rejected request; statusCode is 401 or 403
func (s *AuditService) LogAccessDenied(actor Actor, path, requirement string, statusCode int) error {
	log := s.record(models.AuditActionAccessDenied, "route", actor).
		WithResource(path).
		WithDetails(map[string]string{"required_role": requirement}).
		WithError(statusCode, "access denied")
	return s.LogEvent(&AuditEvent{Log: log})
}

// LogRoleChange records an admin changing another user's role
func (s *AuditService) LogRoleChange(actor Actor, targetEmail, newRole string) error {
	log := s.record(models.AuditActionRoleChanged, "role", actor).
		WithResource(targetEmail).
		WithDetails(map[string]string{"role": newRole})
	return s.LogEvent(&AuditEvent{Log: log})
}

// LogBookMutation records a create, update, delete, checkout or checkin
func (s *AuditService) LogBookMutation(actor Actor, action models.AuditAction, bookID string, details interface{}) error {
	log := s.record(action, "book", actor).WithResource(bookID)
	if details != nil {
		log.WithDetails(details)
	}
	return s.LogEvent(&AuditEvent{Log: log})
}
