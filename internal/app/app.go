package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/config"
	"github.com/tradesmatepro/portal-identity/internal/database"
	"github.com/tradesmatepro/portal-identity/internal/notify"
	"github.com/tradesmatepro/portal-identity/internal/redis"
	"github.com/tradesmatepro/portal-identity/internal/repository"
	"github.com/tradesmatepro/portal-identity/internal/service"
)

// App holds the connections and services shared by the HTTP server and the
// operator CLI.
type App struct {
	Config *config.Config
	DB     *database.DB
	Redis  *redis.Client

	SessionRepo repository.SessionRepository
	Mailer      *service.Dispatcher

	Limiter    *service.RateLimiter
	Activity   *service.ActivityLogger
	Customers  *service.CustomerIdentityResolver
	Linker     *service.CompanyLinker
	Identities *service.AuthIdentityProvisioner
	Portal     *service.PortalAccountManager
	Sessions   *service.SessionManager
}

// New connects to Postgres and Redis and wires the services. The caller owns
// the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(pingCtx, cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info().Msg("redis connected")

	a := &App{Config: cfg, DB: db, Redis: redisClient}
	a.wire()
	return a, nil
}

func (a *App) wire() {
	cfg := a.Config
	base := strings.TrimRight(cfg.PortalBaseURL, "/")

	customerRepo := repository.NewCustomerRepository(a.DB.DB)
	linkRepo := repository.NewCompanyLinkRepository(a.DB.DB)
	identityRepo := repository.NewAuthIdentityRepository(a.DB.DB)
	accountRepo := repository.NewPortalAccountRepository(a.DB.DB)
	activityRepo := repository.NewActivityRepository(a.DB.DB)
	a.SessionRepo = repository.NewSessionRepository(a.DB.DB)

	a.Mailer = service.NewDispatcher(notify.NewOutbox(a.Redis))
	verifier := service.NewHTTPCredentialVerifier(cfg.CredentialCheckURL, config.CredentialCheckTimeout)

	a.Limiter = service.NewRateLimiter(a.Redis.Client)
	a.Activity = service.NewActivityLogger(activityRepo, nil)
	a.Customers = service.NewCustomerIdentityResolver(customerRepo, nil)
	a.Linker = service.NewCompanyLinker(linkRepo, nil)
	a.Identities = service.NewAuthIdentityProvisioner(identityRepo, a.Mailer, service.AuthIdentityConfig{
		TokenSecret:     cfg.SessionSecret,
		ConfirmationTTL: cfg.ConfirmationTTL(),
		ConfirmURLBase:  base + "/confirm-email",
	})
	a.Sessions = service.NewSessionManager(
		a.SessionRepo, accountRepo, verifier, a.Mailer, a.Limiter, a.Activity,
		service.SessionConfig{
			TokenSecret:        cfg.SessionSecret,
			SessionTTL:         cfg.SessionTTL(),
			MagicLinkTTL:       cfg.MagicLinkTTL(),
			MagicLinkSingleUse: cfg.MagicLinkSingleUse,
			MagicLinkURLBase:   base + "/magic-link",
			InvitationTTL:      cfg.InvitationTTL(),
			MagicLinkRateLimit: cfg.MagicLinkRateLimitPerHr,
		},
	)
	a.Portal = service.NewPortalAccountManager(
		a.Customers, a.Linker, a.Identities, accountRepo, customerRepo, a.Activity, a.Sessions, nil,
	)
}

// Close drains queued email hand-offs before closing Redis, which carries the
// outbox, and then the database.
func (a *App) Close() {
	a.Mailer.Wait(config.NotifyDispatchTimeout)
	if err := a.Redis.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis")
	}
	if err := a.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}
