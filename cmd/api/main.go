// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/carterperez-dev/tfg-registry/internal/admin"
	"github.com/carterperez-dev/tfg-registry/internal/auth"
	"github.com/carterperez-dev/tfg-registry/internal/config"
	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
	"github.com/carterperez-dev/tfg-registry/internal/health"
	"github.com/carterperez-dev/tfg-registry/internal/mail"
	"github.com/carterperez-dev/tfg-registry/internal/metrics"
	"github.com/carterperez-dev/tfg-registry/internal/middleware"
	"github.com/carterperez-dev/tfg-registry/internal/reference"
	"github.com/carterperez-dev/tfg-registry/internal/server"
	"github.com/carterperez-dev/tfg-registry/internal/storage"
	"github.com/carterperez-dev/tfg-registry/internal/tfg"
	"github.com/carterperez-dev/tfg-registry/internal/user"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	genKeys := flag.Bool("genkeys", false, "write a new ES256 key pair to the configured paths and exit")
	flag.Parse()

	if *genKeys {
		if err := generateKeys(*configPath); err != nil {
			slog.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func generateKeys(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
		return err
	}
	slog.Info("key pair written",
		"private", cfg.JWT.PrivateKeyPath,
		"public", cfg.JWT.PublicKeyPath,
	)
	return nil
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := core.Migrate(ctx, db.DB, logger); err != nil {
			return err
		}
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	m := metrics.New()
	m.Registerer().MustRegister(collectors.NewDBStatsCollector(db.DB.DB, "tfg_registry"))

	files, err := storage.New(ctx, cfg.Storage, cfg.Upload.MaxBytes, logger, m)
	if err != nil {
		return err
	}
	logger.Info("file store ready", "backend", cfg.Storage.Backend)

	mailer := mail.New(cfg.Mail, logger, m)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	tx := core.NewTransactor(db.DB)
	refDeps := reference.Deps{Tx: tx, Logger: logger}

	yearRepo := reference.NewRepository(db.DB, entity.KindYear)
	degreeRepo := reference.NewRepository(db.DB, entity.KindDegree)
	advisorRepo := reference.NewRepository(db.DB, entity.KindAdvisor)

	years := reference.NewYears(yearRepo, refDeps)
	degrees := reference.NewDegrees(degreeRepo, refDeps)
	advisors := reference.NewAdvisors(advisorRepo, refDeps)

	tfgRepo := tfg.NewRepository(db.DB)
	for _, registry := range []*reference.Registry{years, degrees, advisors} {
		registry.SetUsageChecker(tfgRepo)
	}

	tfgSvc := tfg.NewService(tfg.Deps{
		Store:      tfgRepo,
		Years:      years,
		Degrees:    degrees,
		Advisors:   advisors,
		Files:      files,
		Tx:         tx,
		Logger:     logger,
		Events:     m,
		Pagination: cfg.Pagination,
		MaxUpload:  cfg.Upload.MaxBytes,
	})

	userSvc := user.NewService(user.NewRepository(db.DB), logger)

	authSvc := auth.NewService(auth.Deps{
		Users:       userSvc,
		Tokens:      jwtManager,
		Revocations: auth.NewRedisRevocations(redis.Client),
		Mail:        mailer,
		Config:      cfg.Auth,
		Logger:      logger,
	})

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		TFGs:  tfgSvc,
		Users: userSvc,
		References: map[string]admin.ReferenceCounter{
			"years":    yearRepo,
			"degrees":  degreeRepo,
			"advisors": advisorRepo,
		},
		LockAt:     cfg.Auth.MaxLoginAttempts,
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Logger:     logger,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	if cfg.Metrics.Enabled {
		router.Use(m.Middleware)
	}
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.Every(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen:   true,
			BypassFunc: middleware.SkipPaths("/healthz", "/livez", "/readyz", cfg.Metrics.Path),
			Logger:     logger,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.Method("GET", cfg.Metrics.Path, m.Handler())
	}

	authLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.Every(cfg.RateLimit.AuthRequests, 0, cfg.RateLimit.Window),
		KeyFunc:  middleware.KeyByIPAndEndpoint,
		FailOpen: true,
		Logger:   logger,
	})

	authenticator := middleware.Authenticator(authSvc)
	authHandler := auth.NewHandler(authSvc)
	authHandler.RegisterWellKnown(router)

	router.Route("/users", func(r chi.Router) {
		authHandler.RegisterRoutes(r.With(authLimiter.Handler))
		user.NewHandler(userSvc).RegisterRoutes(r, authenticator)
	})

	reference.NewHandler(years, core.RoleAdmin).RegisterRoutes(router, authenticator)
	reference.NewHandler(degrees, core.RoleAdmin).RegisterRoutes(router, authenticator)
	reference.NewHandler(advisors, core.PrivilegedRoles...).RegisterRoutes(router, authenticator)

	tfg.NewHandler(tfgSvc, cfg.Upload.MaxBytes).RegisterRoutes(router, authenticator)

	adminHandler.RegisterRoutes(router, authenticator, middleware.RequireAdmin)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+cfg.Server.DrainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, cfg.Server.DrainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
