package repository

import (
	"context"
	"time"

	"github.com/tradesmatepro/portal-identity/internal/database"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

// SessionRepository stores portal sessions keyed by token hash. Every lookup
// takes the caller's clock reading; validity is never decided by the database
// clock or cached.
type SessionRepository interface {
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// FindValidByTokenHash returns the session only if expires_at > now and it
	// is neither revoked nor consumed.
	FindValidByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error)
	// Consume atomically marks a valid magic-link session consumed and returns
	// it. A second caller gets nil.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error)
	Touch(ctx context.Context, id string, now time.Time) error
	Revoke(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	RevokeAllForAccount(ctx context.Context, portalAccountID string, now time.Time) (int64, error)
	// DeleteStale physically removes sessions that stopped being valid before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db database.DBTX) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO portal_sessions (
			id, portal_account_id, token_hash, kind, ip_address, user_agent, expires_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.ID, params.PortalAccountID, params.TokenHash, params.Kind, params.IPAddress, params.UserAgent,
		params.ExpiresAt, params.Now)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindValidByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM portal_sessions
		WHERE token_hash = $1
		AND expires_at > $2
		AND revoked_at IS NULL
		AND consumed_at IS NULL
	`, tokenHash, now)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE portal_sessions SET consumed_at = $2, last_accessed = $2
		WHERE token_hash = $1
		AND kind = $3
		AND expires_at > $2
		AND revoked_at IS NULL
		AND consumed_at IS NULL
		RETURNING *
	`, tokenHash, now, model.SessionKindMagicLink)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Touch(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_sessions SET last_accessed = $2 WHERE id = $1
	`, id, now)
	return err
}

func (r *sessionRepo) Revoke(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE portal_sessions SET revoked_at = $2
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash, now)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *sessionRepo) RevokeAllForAccount(ctx context.Context, portalAccountID string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE portal_sessions SET revoked_at = $2
		WHERE portal_account_id = $1 AND revoked_at IS NULL
	`, portalAccountID, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM portal_sessions
		WHERE expires_at < $1
		OR revoked_at < $1
		OR consumed_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
