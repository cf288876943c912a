package repository

import (
	"context"
	"time"

	"github.com/tradesmatepro/portal-identity/internal/database"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

type AuthIdentityRepository interface {
	FindByID(ctx context.Context, id string) (*model.AuthIdentity, error)
	FindByEmail(ctx context.Context, email string) (*model.AuthIdentity, error)
	// Create inserts an identity or returns the one already owning the email.
	// An existing identity's provenance is never rewritten.
	Create(ctx context.Context, params model.CreateAuthIdentityParams) (*model.AuthIdentity, bool, error)
	// ConfirmByTokenHash marks a pending identity self-verified. Returns nil
	// when no unexpired pending token matches.
	ConfirmByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.AuthIdentity, error)
}

type authIdentityRepo struct {
	db database.DBTX
}

func NewAuthIdentityRepository(db database.DBTX) AuthIdentityRepository {
	return &authIdentityRepo{db: db}
}

type upsertedIdentity struct {
	model.AuthIdentity
	Inserted bool `db:"inserted"`
}

func (r *authIdentityRepo) FindByID(ctx context.Context, id string) (*model.AuthIdentity, error) {
	var identity model.AuthIdentity
	err := r.db.GetContext(ctx, &identity, `SELECT * FROM portal_auth_identities WHERE id = $1`, id)
	return HandleNotFound(&identity, err)
}

func (r *authIdentityRepo) FindByEmail(ctx context.Context, email string) (*model.AuthIdentity, error) {
	var identity model.AuthIdentity
	err := r.db.GetContext(ctx, &identity, `SELECT * FROM portal_auth_identities WHERE email = $1`, email)
	return HandleNotFound(&identity, err)
}

func (r *authIdentityRepo) Create(ctx context.Context, params model.CreateAuthIdentityParams) (*model.AuthIdentity, bool, error) {
	var row upsertedIdentity
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO portal_auth_identities (
			id, email, confirmation_source, confirmed_at, invited_by_company_id,
			confirmation_token_hash, confirmation_expires_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING *, `+insertedColumn,
		params.ID, params.Email, params.ConfirmationSource, params.ConfirmedAt, params.InvitedByCompanyID,
		params.ConfirmationTokenHash, params.ConfirmationExpiresAt, params.Now)
	if err != nil {
		return nil, false, err
	}
	return &row.AuthIdentity, row.Inserted, nil
}

func (r *authIdentityRepo) ConfirmByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.AuthIdentity, error) {
	var identity model.AuthIdentity
	err := r.db.GetContext(ctx, &identity, `
		UPDATE portal_auth_identities SET
			confirmation_source = $3,
			confirmed_at = $2,
			confirmation_token_hash = NULL,
			confirmation_expires_at = NULL
		WHERE confirmation_token_hash = $1
		AND confirmation_expires_at > $2
		AND confirmed_at IS NULL
		RETURNING *
	`, tokenHash, now, model.ConfirmationSelfVerified)
	return HandleNotFound(&identity, err)
}
