package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/palisade-io/palisade/internal/api"
	"github.com/palisade-io/palisade/internal/auth"
	"github.com/palisade-io/palisade/internal/config"
	"github.com/palisade-io/palisade/internal/storage"
	"github.com/palisade-io/palisade/internal/tenant"
)

// setupLogger installs the process-wide slog logger: JSON in production for
// machine parsing, text at debug level everywhere else.
func setupLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		setupLogger(os.Getenv("APP_ENV")).Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	log := setupLogger(cfg.Env)
	log.Info("application_startup", "env", cfg.Env)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	}

	ctx := context.Background()

	pool, err := storage.NewPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("database_connected")

	var sessionStore auth.SessionStore
	switch cfg.SessionBackend {
	case "memory":
		sessionStore = auth.NewMemorySessionStore()
		log.Warn("session_backend_memory", "details", "sessions will not survive restarts")
	default:
		redisClient, err := storage.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("redis_connect_failed", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		sessionStore = auth.NewRedisSessionStore(redisClient)
		log.Info("redis_connected")
	}

	tokenProvider := auth.NewHMACTokenProvider(auth.JWTConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	sessionManager := auth.NewSessionManager(sessionStore, tokenProvider, cfg.JWTTTL)

	tenantRepo := tenant.NewPostgresRepository(pool)

	authService := auth.NewService(
		auth.NewPostgresUserRepository(pool),
		tenantRepo,
		auth.NewArgon2Hasher(),
		auth.NewMFAService(auth.DefaultMFAConfig(cfg.MFAIssuer)),
		sessionManager,
		auth.NewRBACService(),
		log,
	)

	// The auth service doubles as the session purger so deleting a tenant
	// revokes its users' sessions along with the relational cascade.
	tenantService := tenant.NewService(tenantRepo, authService)

	server := api.NewServer(api.Options{
		Auth:               authService,
		Tenants:            tenantService,
		DB:                 pool,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http_server_listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http_server_failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutdown_initiated")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown_failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown_complete")
}
