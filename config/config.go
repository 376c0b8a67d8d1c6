package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/upb/library-portal/internal/roles"
)

const (
	// devSessionSecret is only accepted outside production.
	devSessionSecret = "library-portal-development-secret-change-me"

	defaultCatalogURL = "https://librarymanagement-backend-production.up.railway.app/api"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	PublicURL     string
	Google        GoogleConfig
	Session       SessionConfig
	Roles         RolesConfig
	Catalog       CatalogConfig
	Audit         AuditConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them; the
	// /auth rate limiter keys on that address.
	TrustProxyHeaders bool
}

// GoogleConfig holds the OpenID Connect client for Google sign-in
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	IssuerURL    string
	RedirectURL  string
}

// Enabled reports whether sign-in can be offered at all.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// SessionConfig controls the signed session cookie
type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	Issuer       string
	CookieName   string
	CookieSecure bool
	CSRFKey      []byte
}

// RolesConfig holds the e-mail allow-lists used for role assignment.
// Empty lists mean every user is a member.
type RolesConfig struct {
	AdminEmails     []string
	LibrarianEmails []string
}

// CatalogConfig points at the remote library REST API
type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AuditConfig controls the asynchronous audit trail. When Database is nil
// audit events go to the structured log only.
type AuditConfig struct {
	Database   *DatabaseConfig
	BufferSize int
	Workers    int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RedisConfig enables the shared session revocation store when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig applies to the /auth endpoints, per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// DotEnvFile is the optional local environment file.
const DotEnvFile = ".env"

// LoadDotEnv loads path into the process environment when it exists.
// Variables already set win over the file.
func LoadDotEnv(path string) {
	_ = godotenv.Load(path)
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	LoadDotEnv(DotEnvFile)

	publicURL := strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:3000"), "/")
	secret := getEnv("SESSION_SECRET", "")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		PublicURL:   publicURL,
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getPort(),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout:   getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TrustProxyHeaders: getEnvAsBool("TRUST_PROXY_HEADERS", false),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			IssuerURL:    getEnv("GOOGLE_ISSUER_URL", "https://accounts.google.com"),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", publicURL+"/auth/callback"),
		},
		Session: SessionConfig{
			Secret:       secret,
			TTL:          getEnvAsDuration("SESSION_TTL", 8*time.Hour),
			Issuer:       getEnv("SESSION_ISSUER", "library-portal"),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "library_session"),
			CookieSecure: getEnvAsBool("COOKIE_SECURE", strings.HasPrefix(publicURL, "https://")),
		},
		Roles: RolesConfig{
			AdminEmails:     roles.ParseAllowList(getEnv("ADMIN_EMAILS", "")),
			LibrarianEmails: roles.ParseAllowList(getEnv("LIBRARIAN_EMAILS", "")),
		},
		Catalog: CatalogConfig{
			BaseURL: strings.TrimRight(getEnv("CATALOG_API_URL", defaultCatalogURL), "/"),
			Timeout: getEnvAsDuration("CATALOG_TIMEOUT", 10*time.Second),
		},
		Audit: AuditConfig{
			Database:   loadAuditDatabaseConfig(),
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("AUTH_RATE_LIMIT_RPS", 1),
			Burst:             getEnvAsInt("AUTH_RATE_LIMIT_BURST", 10),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if cfg.Session.Secret == "" && !cfg.IsProduction() {
		cfg.Session.Secret = devSessionSecret
	}
	cfg.Session.CSRFKey = csrfKey(getEnv("CSRF_KEY", ""), cfg.Session.Secret)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.IsProduction() {
		if !c.Google.Enabled() {
			return fmt.Errorf("google client ID and secret are required in production")
		}
		if len(c.Session.Secret) < 32 {
			return fmt.Errorf("session secret of at least 32 bytes is required in production")
		}
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	u, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("catalog API URL %q is not an absolute URL", c.Catalog.BaseURL)
	}

	if c.Audit.Workers < 1 {
		return fmt.Errorf("audit workers must be at least 1")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("auth rate limit must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return c.ConnectionString
}

// LogString returns a safe string for logging (no password).
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil || u.Host == "" {
		return "host=<from AUDIT_DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
}

// loadAuditDatabaseConfig returns nil when AUDIT_DATABASE_URL is not set.
func loadAuditDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("AUDIT_DATABASE_URL", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// csrfKey returns a 32-byte key for gorilla/csrf, derived from the session
// secret when no explicit key is configured.
func csrfKey(explicit, sessionSecret string) []byte {
	if len(explicit) == 32 {
		return []byte(explicit)
	}
	src := explicit
	if src == "" {
		src = "csrf:" + sessionSecret
	}
	sum := sha256.Sum256([]byte(src))
	return sum[:]
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 3000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 3000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
