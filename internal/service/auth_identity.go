package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/audit"
	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/repository"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

type AuthIdentityConfig struct {
	TokenSecret     string
	ConfirmationTTL time.Duration
	// ConfirmURLBase is the portal page that accepts ?token=.
	ConfirmURLBase string
	Clock          Clock
}

// AuthIdentityProvisioner owns email-based login credentials. Every identity
// records how its email came to be trusted.
type AuthIdentityProvisioner struct {
	repo     repository.AuthIdentityRepository
	mailer   *Dispatcher
	cfg      AuthIdentityConfig
	clock    Clock
}

func NewAuthIdentityProvisioner(repo repository.AuthIdentityRepository, mailer *Dispatcher, cfg AuthIdentityConfig) *AuthIdentityProvisioner {
	return &AuthIdentityProvisioner{
		repo:     repo,
		mailer:   mailer,
		cfg:      cfg,
		clock:    orSystemClock(cfg.Clock),
	}
}

func normalizedEmail(email string) (string, error) {
	email = util.NormalizeEmail(email)
	if err := util.ValidateVar("email", email, "required,email,max=254"); err != nil {
		return "", err
	}
	return email, nil
}

// FindByEmail returns nil, nil when no identity owns the address.
func (p *AuthIdentityProvisioner) FindByEmail(ctx context.Context, email string) (*model.AuthIdentity, error) {
	email = util.NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	identity, err := p.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find auth identity: %w", err)
	}
	return identity, nil
}

func (p *AuthIdentityProvisioner) FindByID(ctx context.Context, id string) (*model.AuthIdentity, error) {
	identity, err := p.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find auth identity: %w", err)
	}
	return identity, nil
}

// CreateInvited creates an identity whose email is confirmed on the strength
// of the inviting company's word. If the email already has an identity it is
// returned as is, keeping its original provenance.
func (p *AuthIdentityProvisioner) CreateInvited(ctx context.Context, email, companyID string) (*model.AuthIdentity, error) {
	email, err := normalizedEmail(email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(companyID) == "" {
		return nil, apperrors.MissingRequired("companyId")
	}

	now := p.clock()
	source := model.ConfirmationCompanyInvite
	identity, created, err := p.repo.Create(ctx, model.CreateAuthIdentityParams{
		ID:                 util.NewID(),
		Email:              email,
		ConfirmationSource: &source,
		ConfirmedAt:        &now,
		InvitedByCompanyID: &companyID,
		Now:                now,
	})
	if err != nil {
		return nil, fmt.Errorf("create invited auth identity: %w", err)
	}

	if created {
		audit.Log(ctx, audit.Event{
			Type:      audit.EventIdentityInvited,
			CompanyID: companyID,
			Email:     email,
			Details: map[string]interface{}{
				"auth_identity_id":    identity.ID,
				"confirmation_source": string(source),
			},
		})
	}
	return identity, nil
}

// CreateSelfService creates an unconfirmed identity and hands a confirmation
// link to the notifier. An existing identity is returned unchanged and no
// new link is sent.
func (p *AuthIdentityProvisioner) CreateSelfService(ctx context.Context, email string) (*model.AuthIdentity, error) {
	email, err := normalizedEmail(email)
	if err != nil {
		return nil, err
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("failed to generate confirmation token").WithCause(err)
	}

	now := p.clock()
	tokenHash := util.HmacSHA256(p.cfg.TokenSecret, token)
	expiresAt := now.Add(p.cfg.ConfirmationTTL)

	identity, created, err := p.repo.Create(ctx, model.CreateAuthIdentityParams{
		ID:                    util.NewID(),
		Email:                 email,
		ConfirmationTokenHash: &tokenHash,
		ConfirmationExpiresAt: &expiresAt,
		Now:                   now,
	})
	if err != nil {
		return nil, fmt.Errorf("create self-service auth identity: %w", err)
	}
	if !created {
		log.Debug().Str("authIdentityId", identity.ID).Msg("self-service signup for existing identity")
		return identity, nil
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventIdentitySelfSignup,
		Email:   email,
		Details: map[string]interface{}{"auth_identity_id": identity.ID},
	})

	p.mailer.Send(ctx, model.EmailNotification{
		ID:        util.NewID(),
		Kind:      model.NotificationEmailConfirmation,
		To:        email,
		URL:       tokenURL(p.cfg.ConfirmURLBase, token),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	return identity, nil
}

// ConfirmEmail redeems a self-service confirmation token.
func (p *AuthIdentityProvisioner) ConfirmEmail(ctx context.Context, token string) (*model.AuthIdentity, error) {
	if !util.IsTokenFormat(token) {
		return nil, apperrors.Authentication("Invalid or expired confirmation token")
	}

	identity, err := p.repo.ConfirmByTokenHash(ctx, util.HmacSHA256(p.cfg.TokenSecret, token), p.clock())
	if err != nil {
		return nil, fmt.Errorf("confirm email: %w", err)
	}
	if identity == nil {
		return nil, apperrors.Authentication("Invalid or expired confirmation token")
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventEmailConfirmed,
		Email:   identity.Email,
		Details: map[string]interface{}{"auth_identity_id": identity.ID},
	})
	return identity, nil
}

func tokenURL(base, token string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}
