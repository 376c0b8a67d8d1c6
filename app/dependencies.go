package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/library-portal/auth"
	"github.com/upb/library-portal/config"
	"github.com/upb/library-portal/internal/observability"
	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/middleware"
	"github.com/upb/library-portal/repositories"
	"github.com/upb/library-portal/repositories/postgres"
	"github.com/upb/library-portal/services/audit"
	"github.com/upb/library-portal/services/catalog"
	"github.com/upb/library-portal/session"
	"github.com/upb/library-portal/views"
)

// logAuditCapacity is how many entries the log-only audit sink keeps for
// the admin dashboard.
const logAuditCapacity = 200

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	DB      *postgres.DB  // nil unless AUDIT_DATABASE_URL is set
	Redis   *redis.Client // nil unless REDIS_ADDR is set

	// Domain
	Assigner *roles.Assigner
	Sessions *session.Manager
	Catalog  *catalog.Client
	Audit    *audit.AuditService
	Views    *views.Renderer

	// Auth
	AuthHandler    *auth.Handler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	SignInEnabled  bool

	redisRevoker *session.RedisRevoker
	stopCleanup  context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(cfg.Observability.MetricsEnabled),
	}

	if err := deps.initAudit(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
	}

	if err := deps.initSessions(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize sessions: %w", err)
	}

	renderer, err := views.New(logger)
	if err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	deps.Views = renderer

	deps.Catalog = catalog.NewClient(catalog.Config{
		BaseURL: cfg.Catalog.BaseURL,
		Timeout: cfg.Catalog.Timeout,
	}, logger, deps.Metrics)

	deps.initAuth(ctx, cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("catalog_url", cfg.Catalog.BaseURL),
		zap.Bool("sign_in_enabled", deps.SignInEnabled),
		zap.Bool("audit_database", deps.DB != nil),
		zap.Bool("redis", deps.Redis != nil))
	return deps, nil
}

// initAudit picks the audit sink and starts the worker pool.
func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	var repo repositories.AuditRepository
	if cfg.Audit.Database != nil {
		db, err := postgres.NewDB(*cfg.Audit.Database, d.Logger)
		if err != nil {
			return err
		}
		d.DB = db

		if err := db.InitAuditSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize audit schema: %w", err)
		}
		repo = postgres.NewAuditRepository(db, d.Logger)
	} else {
		d.Logger.Info("AUDIT_DATABASE_URL not set, audit events go to the log")
		repo = repositories.NewLogAuditRepository(d.Logger, logAuditCapacity)
	}

	d.Audit = audit.NewAuditService(repo, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
		OnDrop:      d.Metrics.AuditDropped.Inc,
	})
	return d.Audit.Start()
}

// initSessions builds the token manager, sharing revocations through Redis
// when it is configured.
func (d *Dependencies) initSessions(ctx context.Context, cfg *config.Config) error {
	var revoker session.Revoker = session.NewMemoryRevoker()

	if cfg.Redis.Addr != "" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.redisRevoker = session.NewRedisRevoker(d.Redis)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := d.redisRevoker.Ping(pingCtx); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		revoker = d.redisRevoker
		d.Logger.Info("session revocations stored in redis", zap.String("addr", cfg.Redis.Addr))
	}

	d.Sessions = session.NewManager(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL, revoker)
	return nil
}

func (d *Dependencies) initAuth(ctx context.Context, cfg *config.Config) {
	d.Assigner = roles.NewAssigner(cfg.Roles.AdminEmails, cfg.Roles.LibrarianEmails, d.Logger,
		roles.WithObserver(func(_ string, role roles.Role) {
			d.Metrics.RoleAssignments.WithLabelValues(role.String()).Inc()
		}))

	var provider auth.IdentityProvider = auth.DisabledProvider{}
	if cfg.Google.Enabled() {
		provider = auth.NewGoogleProvider(cfg.Google)
		d.SignInEnabled = true
	} else {
		d.Logger.Warn("google sign-in not configured, every visitor stays anonymous")
	}

	d.AuthHandler = auth.NewHandler(provider, d.Assigner, d.Sessions, d.Audit, auth.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}, d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Sessions, cfg.Session.CookieName, d.Logger,
		middleware.WithAuditor(d.Audit),
		middleware.WithMetrics(d.Metrics))

	cleanupCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.stopCleanup = cancel
	d.RateLimiter = middleware.NewRateLimiter(cleanupCtx, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, d.Logger)
}

// ReadinessChecks lists the dependencies /readyz checks.
func (d *Dependencies) ReadinessChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if d.Catalog != nil {
		checks["catalog"] = d.Catalog.Ping
	}
	if d.DB != nil {
		checks["database"] = d.DB.HealthCheck
	}
	if d.redisRevoker != nil {
		checks["redis"] = d.redisRevoker.Ping
	}
	return checks
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopCleanup != nil {
		d.stopCleanup()
	}

	// Drain the audit queue before closing its sink
	if d.Audit != nil {
		timeout := d.Config.Server.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if timeout <= 0 {
			timeout = time.Second
		}
		if err := d.Audit.Stop(timeout); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
