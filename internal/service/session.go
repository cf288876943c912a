package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/audit"
	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/metrics"
	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/repository"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

const invalidCredentialsMessage = "Invalid email or password"

type SessionConfig struct {
	TokenSecret  string
	SessionTTL   time.Duration
	MagicLinkTTL time.Duration
	// MagicLinkSingleUse consumes a magic-link session on its first
	// successful validation. Off by default: the link replays until expiry.
	MagicLinkSingleUse bool
	MagicLinkURLBase   string
	// InvitationTTL bounds the magic link sent to a newly invited account.
	// Zero falls back to SessionTTL.
	InvitationTTL time.Duration
	// MagicLinkRateLimit caps magic links per email per hour. Zero disables it.
	MagicLinkRateLimit int
	Clock              Clock
}

type LoginResult struct {
	Account   *model.PortalAccount `json:"account"`
	Token     string               `json:"sessionToken"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

type MagicLinkResult struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
	Account   *model.PortalAccount `json:"account"`
}

// SessionManager issues and checks portal bearer tokens. Only an HMAC of each
// token is stored, and expiry is evaluated against the clock on every lookup.
type SessionManager struct {
	sessions repository.SessionRepository
	accounts repository.PortalAccountRepository
	verifier CredentialVerifier
	mailer   *Dispatcher
	limiter  Limiter
	activity *ActivityLogger
	cfg      SessionConfig
	clock    Clock
}

func NewSessionManager(
	sessions repository.SessionRepository,
	accounts repository.PortalAccountRepository,
	verifier CredentialVerifier,
	mailer *Dispatcher,
	limiter Limiter,
	activity *ActivityLogger,
	cfg SessionConfig,
) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		accounts: accounts,
		verifier: verifier,
		mailer:   mailer,
		limiter:  limiter,
		activity: activity,
		cfg:      cfg,
		clock:    orSystemClock(cfg.Clock),
	}
}

func (s *SessionManager) hash(token string) string {
	return util.HmacSHA256(s.cfg.TokenSecret, token)
}

// Authenticate checks the password with the credential verifier and issues a
// standard session. Unknown, deactivated and wrong-password logins fail with
// the same error.
func (s *SessionManager) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	email = util.NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if password == "" {
		return nil, apperrors.MissingRequired("password")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find portal account: %w", err)
	}
	if account == nil || !account.IsActive() {
		s.loginFailed(ctx, email, "unknown_or_inactive")
		return nil, apperrors.Authentication(invalidCredentialsMessage)
	}

	ok, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, apperrors.External("credential check", err)
	}
	if !ok {
		s.loginFailed(ctx, email, "wrong_password")
		return nil, apperrors.Authentication(invalidCredentialsMessage)
	}

	token, expiresAt, err := s.IssueSession(ctx, account.ID, s.cfg.SessionTTL, model.SessionKindStandard)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		log.Warn().Err(err).Str("portalAccountId", account.ID).Msg("failed to update last login")
	} else {
		account.LastLogin = &now
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	audit.Log(ctx, audit.Event{Type: audit.EventLoginSuccess, PortalAccountID: account.ID, Email: email})
	s.activity.Log(ctx, ActivityEvent{
		PortalAccountID: account.ID,
		Action:          model.ActivityLogin,
		ResourceType:    "session",
		Metadata:        map[string]any{"method": "password"},
	})

	return &LoginResult{Account: account, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *SessionManager) loginFailed(ctx context.Context, email, reason string) {
	metrics.LoginAttempts.WithLabelValues("failure").Inc()
	audit.Log(ctx, audit.Event{
		Type:    audit.EventLoginFailure,
		Email:   email,
		Details: map[string]interface{}{"reason": reason},
	})
}

// IssueSession stores a new session for the account and returns the raw
// token. The token is never persisted.
func (s *SessionManager) IssueSession(ctx context.Context, accountID string, ttl time.Duration, kind model.SessionKind) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, apperrors.InvalidInput("ttl", "must be positive")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", time.Time{}, apperrors.Internal("failed to generate session token").WithCause(err)
	}

	now := s.clock()
	client := audit.ClientFromContext(ctx)
	session, err := s.sessions.Create(ctx, model.CreateSessionParams{
		ID:              util.NewID(),
		PortalAccountID: accountID,
		TokenHash:       s.hash(token),
		Kind:            kind,
		IPAddress:       util.NilIfBlank(client.IP),
		UserAgent:       util.NilIfBlank(client.UserAgent),
		ExpiresAt:       now.Add(ttl),
		Now:             now,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionsIssued.WithLabelValues(string(kind)).Inc()
	log.Debug().
		Str("sessionId", session.ID).
		Str("portalAccountId", accountID).
		Str("kind", string(kind)).
		Time("expiresAt", session.ExpiresAt).
		Msg("session issued")

	return token, session.ExpiresAt, nil
}

// ValidateSession returns the account behind a live token, or nil when the
// token is unknown, expired, revoked, consumed, or its account is
// deactivated. Only store failures are returned as errors.
func (s *SessionManager) ValidateSession(ctx context.Context, token string) (*model.PortalAccount, error) {
	session, err := s.resolve(ctx, token)
	if err != nil || session == nil {
		return nil, err
	}
	return s.accountFor(ctx, session)
}

// resolve finds the live session for token and records the access. A
// single-use magic link is consumed here, so only one caller ever gets it.
func (s *SessionManager) resolve(ctx context.Context, token string) (*model.Session, error) {
	if !util.IsTokenFormat(token) {
		metrics.SessionValidations.WithLabelValues("malformed").Inc()
		return nil, nil
	}

	now := s.clock()
	tokenHash := s.hash(token)

	session, err := s.sessions.FindValidByTokenHash(ctx, tokenHash, now)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil || !session.IsValidAt(now) {
		metrics.SessionValidations.WithLabelValues("miss").Inc()
		return nil, nil
	}

	if s.cfg.MagicLinkSingleUse && session.Kind == model.SessionKindMagicLink {
		session, err = s.sessions.Consume(ctx, tokenHash, now)
		if err != nil {
			return nil, fmt.Errorf("consume magic link: %w", err)
		}
		if session == nil {
			metrics.SessionValidations.WithLabelValues("miss").Inc()
			return nil, nil
		}
		return session, nil
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("failed to update session last access")
	}
	return session, nil
}

func (s *SessionManager) accountFor(ctx context.Context, session *model.Session) (*model.PortalAccount, error) {
	account, err := s.accounts.FindByID(ctx, session.PortalAccountID)
	if err != nil {
		return nil, fmt.Errorf("find portal account: %w", err)
	}
	if account == nil || !account.IsActive() {
		metrics.SessionValidations.WithLabelValues("inactive").Inc()
		return nil, nil
	}
	metrics.SessionValidations.WithLabelValues("hit").Inc()
	return account, nil
}

// GenerateMagicLink issues a short-lived session for the email's account and
// hands the link to the notifier. The token is returned for internal callers;
// it must not be echoed to whoever requested the link.
func (s *SessionManager) GenerateMagicLink(ctx context.Context, email string) (*MagicLinkResult, error) {
	email = util.NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.MissingRequired("email")
	}

	if s.limiter != nil && s.cfg.MagicLinkRateLimit > 0 {
		allowed, resetAt := s.limiter.CheckLimit(ctx, "magic-link:"+email, s.cfg.MagicLinkRateLimit, time.Hour)
		if !allowed {
			metrics.RateLimited.WithLabelValues("magic_link_email").Inc()
			audit.Log(ctx, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Email:   email,
				Details: map[string]interface{}{"scope": "magic_link", "reset_at": resetAt},
			})
			return nil, apperrors.RateLimitExceeded()
		}
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find portal account: %w", err)
	}
	if account == nil || !account.IsActive() {
		return nil, apperrors.NotFound("Portal account")
	}

	token, expiresAt, err := s.IssueSession(ctx, account.ID, s.cfg.MagicLinkTTL, model.SessionKindMagicLink)
	if err != nil {
		return nil, err
	}

	s.mailer.Send(ctx, model.EmailNotification{
		ID:        util.NewID(),
		Kind:      model.NotificationMagicLink,
		To:        email,
		URL:       tokenURL(s.cfg.MagicLinkURLBase, token),
		ExpiresAt: expiresAt,
		CreatedAt: s.clock(),
	})

	audit.Log(ctx, audit.Event{Type: audit.EventMagicLinkIssue, PortalAccountID: account.ID, Email: email})
	s.activity.Log(ctx, ActivityEvent{
		PortalAccountID: account.ID,
		Action:          model.ActivityMagicLinkIssued,
		ResourceType:    "session",
		Metadata:        map[string]any{"expiresAt": expiresAt},
	})

	return &MagicLinkResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

// SendInvitation issues a magic-link session for a newly invited account and
// hands the link to the notifier, so the customer can sign in and finish
// password setup.
func (s *SessionManager) SendInvitation(ctx context.Context, account *model.PortalAccount, email string) error {
	ttl := s.cfg.InvitationTTL
	if ttl <= 0 {
		ttl = s.cfg.SessionTTL
	}

	token, expiresAt, err := s.IssueSession(ctx, account.ID, ttl, model.SessionKindMagicLink)
	if err != nil {
		return err
	}

	s.mailer.Send(ctx, model.EmailNotification{
		ID:        util.NewID(),
		Kind:      model.NotificationPortalInvite,
		To:        email,
		URL:       tokenURL(s.cfg.MagicLinkURLBase, token),
		ExpiresAt: expiresAt,
		CreatedAt: s.clock(),
	})
	return nil
}

// ExchangeMagicLink trades a live magic-link token for a standard session.
func (s *SessionManager) ExchangeMagicLink(ctx context.Context, token string) (*LoginResult, error) {
	session, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Kind != model.SessionKindMagicLink {
		return nil, apperrors.Authentication("Invalid or expired link")
	}

	account, err := s.accountFor(ctx, session)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.Authentication("Invalid or expired link")
	}

	newToken, expiresAt, err := s.IssueSession(ctx, account.ID, s.cfg.SessionTTL, model.SessionKindStandard)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		log.Warn().Err(err).Str("portalAccountId", account.ID).Msg("failed to update last login")
	} else {
		account.LastLogin = &now
	}

	audit.Log(ctx, audit.Event{Type: audit.EventMagicLinkExchange, PortalAccountID: account.ID})
	s.activity.Log(ctx, ActivityEvent{
		PortalAccountID: account.ID,
		Action:          model.ActivityMagicLinkExchanged,
		ResourceType:    "session",
		ResourceID:      session.ID,
		Metadata:        map[string]any{"method": "magic_link"},
	})

	return &LoginResult{Account: account, Token: newToken, ExpiresAt: expiresAt}, nil
}

// Logout revokes the session. Unknown or already revoked tokens succeed.
func (s *SessionManager) Logout(ctx context.Context, token string) error {
	if !util.IsTokenFormat(token) {
		return nil
	}

	now := s.clock()
	tokenHash := s.hash(token)

	session, err := s.sessions.FindValidByTokenHash(ctx, tokenHash, now)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	revoked, err := s.sessions.Revoke(ctx, tokenHash, now)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	if revoked && session != nil {
		audit.Log(ctx, audit.Event{Type: audit.EventLogout, PortalAccountID: session.PortalAccountID})
		s.activity.Log(ctx, ActivityEvent{
			PortalAccountID: session.PortalAccountID,
			Action:          model.ActivityLogout,
			ResourceType:    "session",
			ResourceID:      session.ID,
		})
	}
	return nil
}

// RevokeAll ends every live session of the account.
func (s *SessionManager) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	n, err := s.sessions.RevokeAllForAccount(ctx, accountID, s.clock())
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	if n > 0 {
		log.Info().Str("portalAccountId", accountID).Int64("revoked", n).Msg("sessions revoked")
	}
	return n, nil
}
