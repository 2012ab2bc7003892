package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	Env string

	// Server
	ServerAddr string
	ServerPort int
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP. Enable
	// only behind a reverse proxy that overwrites those headers.
	TrustProxy bool

	// Storage
	StoreDriver string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DBMigrate   bool

	// JWT
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	SessionSecurity SessionSecurityConfig
	Cache           CacheConfig
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig

	// Bootstrap admin account, created at startup when both are set.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// SessionSecurityConfig holds refresh token hardening options.
type SessionSecurityConfig struct {
	// DetectReuse revokes a session when a superseded refresh token is replayed.
	DetectReuse bool
}

// CacheConfig holds response cache TTLs.
type CacheConfig struct {
	CategoriesTTL time.Duration
	ProductsTTL   time.Duration
	InflightGuard bool
}

// RateLimitConfig holds per-IP limits for credential endpoints.
type RateLimitConfig struct {
	Enabled         bool
	LoginRequests   int
	LoginWindow     time.Duration
	RefreshRequests int
	RefreshWindow   time.Duration
}

// SecurityHeadersConfig holds the response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// ValidationConfig holds request validation limits.
type ValidationConfig struct {
	MaxRequestBodySize int64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	env := strings.ToLower(getEnv("APP_ENV", EnvDevelopment))

	hstsDefault := 0
	if env == EnvProduction {
		hstsDefault = 31536000
	}

	db := LoadDB()
	cfg := &Config{
		Env: env,

		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		TrustProxy: getEnvBool("TRUST_PROXY", false),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBHost:      db.Host,
		DBPort:      db.Port,
		DBUser:      db.User,
		DBPassword:  db.Password,
		DBName:      db.Name,
		DBSSLMode:   db.SSLMode,
		DBMigrate:   getEnvBool("DB_MIGRATE", true),

		// JWT defaults
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "storefront"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		SessionSecurity: SessionSecurityConfig{
			DetectReuse: getEnvBool("SESSION_DETECT_REUSE", true),
		},

		Cache: CacheConfig{
			CategoriesTTL: getEnvDuration("CACHE_CATEGORIES_TTL", 5*time.Minute),
			ProductsTTL:   getEnvDuration("CACHE_PRODUCTS_TTL", time.Minute),
			InflightGuard: getEnvBool("CACHE_INFLIGHT_GUARD", false),
		},

		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			LoginRequests:   getEnvInt("RATE_LIMIT_LOGIN_REQUESTS", 10),
			LoginWindow:     getEnvDuration("RATE_LIMIT_LOGIN_WINDOW", time.Minute),
			RefreshRequests: getEnvInt("RATE_LIMIT_REFRESH_REQUESTS", 30),
			RefreshWindow:   getEnvDuration("RATE_LIMIT_REFRESH_WINDOW", time.Minute),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_HEADERS_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HEADERS_HSTS_MAX_AGE", hstsDefault),
			FrameOptions:       getEnv("SECURITY_HEADERS_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_HEADERS_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_HEADERS_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_HEADERS_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PermissionsPolicy:  getEnv("SECURITY_HEADERS_PERMISSIONS_POLICY", ""),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},

		BootstrapAdminEmail:    getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.IsProduction() && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if cfg.StoreDriver != StoreDriverPostgres && cfg.StoreDriver != StoreDriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, cfg.StoreDriver)
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}
	if cfg.AccessTokenTTL > cfg.RefreshTokenTTL {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL (%s) must not exceed REFRESH_TOKEN_TTL (%s)", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}

	return cfg, nil
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LoadDB reads only the database settings. Tools that never issue tokens,
// such as the migration command, use it instead of Load.
func LoadDB() DBConfig {
	// Defaults match the local podman setup: make postgres-start
	return DBConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 25432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Name:     getEnv("DB_NAME", "storefront"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// IsProduction reports whether the service runs with production cookie and
// error reporting settings.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// HasBootstrapAdmin returns true if a bootstrap admin account is configured.
func (c *Config) HasBootstrapAdmin() bool {
	return c.BootstrapAdminEmail != "" && c.BootstrapAdminPassword != ""
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
