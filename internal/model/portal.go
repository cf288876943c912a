package model

import (
	"encoding/json"
	"time"
)

// PortalAccount binds one AuthIdentity to the global customers it may act as.
type PortalAccount struct {
	ID              string              `db:"id"`
	AuthIdentityID  string              `db:"auth_identity_id"`
	InvitedBy       *string             `db:"invited_by"`
	Status          PortalAccountStatus `db:"status"`
	CreatedAt       time.Time           `db:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at"`
	LastLogin       *time.Time          `db:"last_login"`
	PasswordSetupAt *time.Time          `db:"password_setup_at"`
}

func (p *PortalAccount) NeedsPasswordSetup() bool {
	return p.Status == PortalAccountPendingSetup
}

func (p *PortalAccount) IsActive() bool {
	return p.Status != PortalAccountDeactivated
}

func (p PortalAccount) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":                 p.ID,
		"authIdentityId":     p.AuthIdentityID,
		"invitedBy":          p.InvitedBy,
		"status":             p.Status,
		"needsPasswordSetup": p.NeedsPasswordSetup(),
		"isActive":           p.IsActive(),
		"createdAt":          p.CreatedAt,
		"lastLogin":          p.LastLogin,
	})
}

type CreatePortalAccountParams struct {
	ID             string
	AuthIdentityID string
	InvitedBy      *string
	Now            time.Time
}
