package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/storefront-api/internal/config"
	"github.com/tendant/storefront-api/internal/http/features/admin"
	"github.com/tendant/storefront-api/internal/http/features/catalog"
	"github.com/tendant/storefront-api/internal/http/features/password"
	"github.com/tendant/storefront-api/internal/http/features/session"
	"github.com/tendant/storefront-api/internal/http/middleware"
	"github.com/tendant/storefront-api/internal/httputil"
	"github.com/tendant/storefront-api/pkg/auth"
	"github.com/tendant/storefront-api/pkg/respcache"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Production      bool
	// TrustProxy rewrites RemoteAddr from forwarded headers before any
	// middleware that reads the client IP.
	TrustProxy      bool
	PasswordService *auth.PasswordService
	SessionService  *auth.SessionService
	Users           admin.UserLookup
	Catalog         catalog.Store
	Cache           *respcache.Cache
	CacheConfig     config.CacheConfig
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	// Registry receives the HTTP collectors and backs /metrics. Optional.
	Registry *prometheus.Registry
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cache == nil {
		cfg.Cache = respcache.New()
	}

	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(cfg.Registry).Instrument)
	}
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	errs := httputil.ErrorWriter{Logger: cfg.Logger, Stack: !cfg.Production}
	cookies := httputil.CookieConfigFor(cfg.Production)
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)
	authenticate := middleware.Auth(cfg.SessionService, middleware.WithErrorWriter(errs))

	// Auth responses carry tokens and must never be stored by intermediaries.
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)

		passwordHandler := password.NewHandler(cfg.PasswordService, cfg.SessionService, cookies, errs)
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["login"])
			passwordHandler.RegisterRoutes(r)
		})

		sessionHandler := session.NewHandler(cfg.SessionService, cookies, errs)
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["refresh"])
			sessionHandler.RegisterPublicRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			sessionHandler.RegisterRoutes(r)
		})
	})

	// Admin routes report every authentication failure the same way.
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.Auth(cfg.SessionService, middleware.WithErrorWriter(errs), middleware.WithOpaqueErrors()))
		admin.NewHandler(cfg.SessionService, cfg.Users, errs).RegisterRoutes(r)
	})

	catalog.NewHandler(cfg.Catalog, cfg.Cache, catalog.Config{
		CategoriesTTL: cfg.CacheConfig.CategoriesTTL,
		ProductsTTL:   cfg.CacheConfig.ProductsTTL,
	}, errs).RegisterRoutes(r)

	return r
}
