package repository

import (
	"context"

	"github.com/tradesmatepro/portal-identity/internal/database"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

type ActivityRepository interface {
	Append(ctx context.Context, entry model.ActivityLogEntry) error
}

type activityRepo struct {
	db database.DBTX
}

func NewActivityRepository(db database.DBTX) ActivityRepository {
	return &activityRepo{db: db}
}

func (r *activityRepo) Append(ctx context.Context, entry model.ActivityLogEntry) error {
	metadata := "{}"
	if len(entry.Metadata) > 0 {
		metadata = string(entry.Metadata)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO portal_activity_log (
			id, portal_account_id, action, resource_type, resource_id, metadata,
			ip_address, user_agent, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
	`, entry.ID, entry.PortalAccountID, entry.Action, entry.ResourceType, entry.ResourceID,
		metadata, entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	return err
}
