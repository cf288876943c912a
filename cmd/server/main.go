package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/app"
	"github.com/tradesmatepro/portal-identity/internal/config"
	"github.com/tradesmatepro/portal-identity/internal/handler"
	"github.com/tradesmatepro/portal-identity/internal/jobs"
	"github.com/tradesmatepro/portal-identity/internal/metrics"
	"github.com/tradesmatepro/portal-identity/internal/middleware"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), config.ServerRequestTimeout)
	if err := a.DB.Migrate(migrateCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	cancel()

	serviceKeyMiddleware := middleware.NewServiceKeyMiddleware(cfg.ServiceAPIKey)
	sessionMiddleware := middleware.NewPortalSessionMiddleware(a.Sessions)
	loginLimit := middleware.NewIPRateLimitMiddleware(a.Limiter, cfg.LoginRateLimitPerMin, time.Minute, "login")
	magicLinkLimit := middleware.NewIPRateLimitMiddleware(a.Limiter, cfg.MagicLinkRateLimitPerHr, time.Hour, "magic-link")
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	portalHandler := handler.NewPortalHandler(
		a.Sessions, a.Portal, a.Identities,
		sessionMiddleware.Handler, csrfMiddleware.RequireToken, loginLimit.Handler, magicLinkLimit.Handler,
		isProduction,
	)
	companyHandler := handler.NewCompanyHandler(a.Customers, a.Linker, a.Portal)
	healthHandler := handler.NewHealthHandler(config.DBPingTimeout, map[string]handler.Pinger{
		"database": a.DB,
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}),
	})

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.ClientInfo)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/internal", func(r chi.Router) {
		r.Use(serviceKeyMiddleware.Handler)
		r.Mount("/", companyHandler.Routes())
	})

	r.Route("/portal/api", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(csrfMiddleware.Handler)
		r.Mount("/", portalHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(a.SessionRepo, cfg.SessionRetention(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Bool("production", isProduction).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
