package repository

import (
	"context"
	"time"

	"github.com/tradesmatepro/portal-identity/internal/database"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

type PortalAccountRepository interface {
	FindByID(ctx context.Context, id string) (*model.PortalAccount, error)
	FindByAuthIdentityID(ctx context.Context, authIdentityID string) (*model.PortalAccount, error)
	FindByEmail(ctx context.Context, email string) (*model.PortalAccount, error)
	// Create inserts an account for the identity or returns the existing one.
	Create(ctx context.Context, params model.CreatePortalAccountParams) (*model.PortalAccount, bool, error)
	UpdateLastLogin(ctx context.Context, id string, now time.Time) error
	// CompleteSetup moves a pending_setup account to active. Returns nil if
	// the account is not pending.
	CompleteSetup(ctx context.Context, id string, now time.Time) (*model.PortalAccount, error)
	// Deactivate marks the account deactivated and revokes its live sessions
	// in the same statement. Returns nil if already deactivated or missing.
	Deactivate(ctx context.Context, id string, now time.Time) (*model.PortalAccount, error)
}

type portalAccountRepo struct {
	db database.DBTX
}

func NewPortalAccountRepository(db database.DBTX) PortalAccountRepository {
	return &portalAccountRepo{db: db}
}

type upsertedAccount struct {
	model.PortalAccount
	Inserted bool `db:"inserted"`
}

func (r *portalAccountRepo) FindByID(ctx context.Context, id string) (*model.PortalAccount, error) {
	var account model.PortalAccount
	err := r.db.GetContext(ctx, &account, `SELECT * FROM portal_accounts WHERE id = $1`, id)
	return HandleNotFound(&account, err)
}

func (r *portalAccountRepo) FindByAuthIdentityID(ctx context.Context, authIdentityID string) (*model.PortalAccount, error) {
	var account model.PortalAccount
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM portal_accounts WHERE auth_identity_id = $1
	`, authIdentityID)
	return HandleNotFound(&account, err)
}

func (r *portalAccountRepo) FindByEmail(ctx context.Context, email string) (*model.PortalAccount, error) {
	var account model.PortalAccount
	err := r.db.GetContext(ctx, &account, `
		SELECT pa.* FROM portal_accounts pa
		JOIN portal_auth_identities ai ON ai.id = pa.auth_identity_id
		WHERE ai.email = $1
	`, email)
	return HandleNotFound(&account, err)
}

func (r *portalAccountRepo) Create(ctx context.Context, params model.CreatePortalAccountParams) (*model.PortalAccount, bool, error) {
	var row upsertedAccount
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO portal_accounts (id, auth_identity_id, invited_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (auth_identity_id) DO UPDATE SET auth_identity_id = EXCLUDED.auth_identity_id
		RETURNING *, `+insertedColumn,
		params.ID, params.AuthIdentityID, params.InvitedBy, model.PortalAccountPendingSetup, params.Now)
	if err != nil {
		return nil, false, err
	}
	return &row.PortalAccount, row.Inserted, nil
}

func (r *portalAccountRepo) UpdateLastLogin(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_accounts SET last_login = $2 WHERE id = $1
	`, id, now)
	return err
}

func (r *portalAccountRepo) CompleteSetup(ctx context.Context, id string, now time.Time) (*model.PortalAccount, error) {
	var account model.PortalAccount
	err := r.db.GetContext(ctx, &account, `
		UPDATE portal_accounts SET
			status = $3,
			password_setup_at = $2,
			updated_at = $2
		WHERE id = $1 AND status = $4
		RETURNING *
	`, id, now, model.PortalAccountActive, model.PortalAccountPendingSetup)
	return HandleNotFound(&account, err)
}

func (r *portalAccountRepo) Deactivate(ctx context.Context, id string, now time.Time) (*model.PortalAccount, error) {
	var account model.PortalAccount
	err := r.db.GetContext(ctx, &account, `
		WITH deactivated AS (
			UPDATE portal_accounts SET status = $3, updated_at = $2
			WHERE id = $1 AND status <> $3
			RETURNING *
		), revoked AS (
			UPDATE portal_sessions SET revoked_at = $2
			WHERE portal_account_id IN (SELECT id FROM deactivated)
			AND revoked_at IS NULL
		)
		SELECT * FROM deactivated
	`, id, now, model.PortalAccountDeactivated)
	return HandleNotFound(&account, err)
}
