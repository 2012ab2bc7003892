package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/storefront-api/internal/config"
	httpserver "github.com/tendant/storefront-api/internal/http"
	"github.com/tendant/storefront-api/internal/http/features/admin"
	"github.com/tendant/storefront-api/internal/http/features/catalog"
	"github.com/tendant/storefront-api/pkg/auth"
	"github.com/tendant/storefront-api/pkg/database/migrate"
	"github.com/tendant/storefront-api/pkg/repository"
	"github.com/tendant/storefront-api/pkg/respcache"
)

// stores groups the persistence backends selected by STORE_DRIVER.
type stores struct {
	sessions auth.SessionStore
	users    interface {
		auth.UserStore
		auth.AccountStore
		admin.UserLookup
	}
	catalog catalog.Store
	db      *sql.DB
}

func main() {
	// Load .env file if present
	if err := config.LoadEnvFiles(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	if cfg.HasBootstrapAdmin() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := auth.EnsureAdmin(ctx, st.users, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, logger)
		cancel()
		if err != nil {
			logger.Error("failed to create bootstrap admin", "error", err)
			os.Exit(1)
		}
	}

	// Initialize services
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:          []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	sessionService := auth.NewSessionService(auth.SessionConfig{
		DetectReuse: cfg.SessionSecurity.DetectReuse,
		Logger:      logger,
	}, tokens, st.sessions, st.users)
	passwordService := auth.NewPasswordService(st.users)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cacheOpts := []respcache.Option{respcache.WithMetrics(respcache.NewMetrics(registry))}
	if cfg.Cache.InflightGuard {
		cacheOpts = append(cacheOpts, respcache.WithInflightGuard())
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		Production:      cfg.IsProduction(),
		TrustProxy:      cfg.TrustProxy,
		PasswordService: passwordService,
		SessionService:  sessionService,
		Users:           st.users,
		Catalog:         st.catalog,
		Cache:           respcache.New(cacheOpts...),
		CacheConfig:     cfg.Cache,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		Registry:        registry,
	})

	// Create HTTP server
	addr := cfg.ListenAddr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func openStores(cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory stores; sessions are lost on restart")
		return &stores{
			sessions: repository.NewMemorySessionsRepository(),
			users:    repository.NewMemoryUsersRepository(),
			catalog:  repository.NewMemoryCatalogRepository(nil, nil),
		}, nil
	}

	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")

	if cfg.DBMigrate {
		if err := migrate.Run(db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &stores{
		sessions: repository.NewSessionsRepository(db),
		users:    repository.NewUsersRepository(db),
		catalog:  repository.NewCatalogRepository(db),
		db:       db,
	}, nil
}
