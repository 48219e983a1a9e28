package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"epts/internal/domain/audit"
	"epts/internal/domain/auth"
	"epts/internal/domain/core"
	"epts/internal/domain/performance"
	"epts/internal/platform/config"
	"epts/internal/platform/db"
	"epts/internal/platform/jobs"
	"epts/internal/platform/metrics"
	audithandler "epts/internal/transport/http/handlers/audit"
	authhandler "epts/internal/transport/http/handlers/auth"
	corehandler "epts/internal/transport/http/handlers/core"
	performancehandler "epts/internal/transport/http/handlers/performance"
	"epts/internal/transport/http/middleware"
)

const (
	maxUploadBytes  = 10 << 20
	shutdownTimeout = 15 * time.Second
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	logger  *slog.Logger
}

// New connects to the database, applies migrations and seed data when
// configured, and assembles the HTTP router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	collector := metrics.New()
	perfService := performance.NewService(performance.NewStore(pool)).WithObserver(collector)
	jobsService := jobs.New(jobs.PoolRuns{DB: pool}, perfService, cfg.RankRepairInterval, collector)

	app := &App{
		Config:  cfg,
		DB:      pool,
		Jobs:    jobsService,
		Metrics: collector,
		logger:  logger,
	}
	app.Router = app.routes(perfService)
	return app, nil
}

func (a *App) routes(perfService *performance.Service) http.Handler {
	cfg := a.Config
	perms := auth.StaticPermissions{}
	authService := auth.NewService(auth.NewStore(a.DB), cfg.JWTSecret, cfg.TokenTTL)
	auditService := audit.New(a.DB)
	coreService := core.NewService(core.NewStore(a.DB))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.logger, a.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes, maxUploadBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, authService))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Method(http.MethodGet, "/metrics", a.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authHandler := authhandler.NewHandler(authService)
		r.Post("/auth/login", authHandler.HandleLogin)

		corehandler.NewHandler(coreService, auditService, perms).RegisterRoutes(r)
		performancehandler.NewHandler(perfService, auditService, a.Jobs, perms).RegisterRoutes(r)
		audithandler.NewHandler(auditService, perms).RegisterRoutes(r)
	})

	return router
}

// Run serves HTTP and background jobs until ctx is cancelled or either fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("EPTS server listening", "addr", a.Config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.Jobs.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		a.logger.Info("EPTS server stopped")
		return nil
	})
	return g.Wait()
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
