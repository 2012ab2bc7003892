// Package storefront embeds the storefront session API and catalog in
// another Go service.
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/shop?sslmode=disable")
//
//	sf, err := storefront.New(storefront.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	    Migrate:   true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", sf.Handler())
//	r.With(sf.AuthMiddleware()).Get("/orders", listOrders)
package storefront

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/storefront-api/internal/config"
	httpserver "github.com/tendant/storefront-api/internal/http"
	"github.com/tendant/storefront-api/internal/http/middleware"
	"github.com/tendant/storefront-api/pkg/auth"
	"github.com/tendant/storefront-api/pkg/database/migrate"
	"github.com/tendant/storefront-api/pkg/domain"
	"github.com/tendant/storefront-api/pkg/repository"
	"github.com/tendant/storefront-api/pkg/respcache"
)

// Config holds the configuration for an embedded storefront.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret signs access and refresh tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim (default: "storefront").
	JWTIssuer string

	// AccessTokenTTL defaults to 1 hour, RefreshTokenTTL to 7 days.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// DisableReuseDetection stops revoking a session when a superseded
	// refresh token is presented. Detection is on by default.
	DisableReuseDetection bool

	// CategoriesTTL defaults to 5 minutes, ProductsTTL to 1 minute.
	CategoriesTTL time.Duration
	ProductsTTL   time.Duration

	// Production enables Secure, SameSite=Strict cookies.
	Production bool

	// TrustProxy takes the client IP recorded on sessions from forwarded
	// headers. Enable only behind a proxy that overwrites them.
	TrustProxy bool

	// Migrate applies the embedded migrations instead of requiring them.
	Migrate bool

	// Registry receives HTTP and cache metrics and serves /metrics (optional).
	Registry *prometheus.Registry

	Logger *slog.Logger
}

// Storefront is an embedded storefront instance.
type Storefront struct {
	sessions *auth.SessionService
	cache    *respcache.Cache
	handler  http.Handler
}

// New creates a storefront backed by cfg.DB. Without Migrate, it fails if
// the schema has not been applied.
func New(cfg Config) (*Storefront, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if cfg.Migrate {
		if err := migrate.Run(cfg.DB, cfg.Logger); err != nil {
			return nil, fmt.Errorf("storefront: %w", err)
		}
	} else if err := validateSchema(context.Background(), cfg.DB); err != nil {
		return nil, err
	}

	users := repository.NewUsersRepository(cfg.DB)
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:          []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	sessions := auth.NewSessionService(auth.SessionConfig{
		DetectReuse: !cfg.DisableReuseDetection,
		Logger:      cfg.Logger,
	}, tokens, repository.NewSessionsRepository(cfg.DB), users)

	var cacheOpts []respcache.Option
	if cfg.Registry != nil {
		cacheOpts = append(cacheOpts, respcache.WithMetrics(respcache.NewMetrics(cfg.Registry)))
	}
	cache := respcache.New(cacheOpts...)

	handler := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          cfg.Logger,
		Production:      cfg.Production,
		TrustProxy:      cfg.TrustProxy,
		PasswordService: auth.NewPasswordService(users),
		SessionService:  sessions,
		Users:           users,
		Catalog:         repository.NewCatalogRepository(cfg.DB),
		Cache:           cache,
		CacheConfig: config.CacheConfig{
			CategoriesTTL: cfg.CategoriesTTL,
			ProductsTTL:   cfg.ProductsTTL,
		},
		// The host service owns rate limits and browser security headers.
		RateLimitConfig: config.RateLimitConfig{},
		SecurityHeaders: config.SecurityHeadersConfig{},
		Validation:      config.ValidationConfig{MaxRequestBodySize: 1 << 20},
		Registry:        cfg.Registry,
	})

	return &Storefront{sessions: sessions, cache: cache, handler: handler}, nil
}

// Handler serves every storefront route.
func (s *Storefront) Handler() http.Handler {
	return s.handler
}

// SessionService returns the session service for advanced usage, such as
// revoking all sessions after a password change.
func (s *Storefront) SessionService() *auth.SessionService {
	return s.sessions
}

// Cache returns the response cache so catalog writers can purge it.
func (s *Storefront) Cache() *respcache.Cache {
	return s.cache
}

// AuthMiddleware authenticates requests to the host's own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(sf.AuthMiddleware())
//	    r.Get("/orders", handler)
//	})
func (s *Storefront) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(s.sessions)
}

// RequireRole rejects authenticated users holding none of roles. Use after
// AuthMiddleware.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return middleware.RequireRole(roles...)
}

// CurrentUser returns the user resolved by AuthMiddleware.
func CurrentUser(r *http.Request) (*domain.User, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		return nil, false
	}
	return p.User, true
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("storefront: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("storefront: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("storefront: JWTSecret must be at least 32 characters")
	}
	if cfg.AccessTokenTTL < 0 || cfg.RefreshTokenTTL < 0 {
		return errors.New("storefront: token TTLs must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = auth.DefaultIssuer
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = auth.DefaultRefreshTokenTTL
	}
	if cfg.CategoriesTTL == 0 {
		cfg.CategoriesTTL = 5 * time.Minute
	}
	if cfg.ProductsTTL == 0 {
		cfg.ProductsTTL = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// requiredTables are the tables created by the embedded migrations.
var requiredTables = []string{"users", "sessions", "categories", "products"}

// validateSchema checks that required database tables exist.
func validateSchema(ctx context.Context, db *sql.DB) error {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("storefront: missing table %q - run migrations first or set Migrate", table)
		}
		if err != nil {
			return fmt.Errorf("storefront: failed to check schema: %w", err)
		}
	}
	return nil
}
