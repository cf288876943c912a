package model

import (
	"time"
)

// AuthIdentity is an email-based login credential, independent of any company.
type AuthIdentity struct {
	ID                    string              `db:"id" json:"id"`
	Email                 string              `db:"email" json:"email"`
	ConfirmationSource    *ConfirmationSource `db:"confirmation_source" json:"confirmationSource,omitempty"`
	ConfirmedAt           *time.Time          `db:"confirmed_at" json:"confirmedAt,omitempty"`
	InvitedByCompanyID    *string             `db:"invited_by_company_id" json:"invitedByCompanyId,omitempty"`
	ConfirmationTokenHash *string             `db:"confirmation_token_hash" json:"-"`
	ConfirmationExpiresAt *time.Time          `db:"confirmation_expires_at" json:"-"`
	CreatedAt             time.Time           `db:"created_at" json:"createdAt"`
}

// IsConfirmed reports whether the email has been vouched for by any path.
func (a *AuthIdentity) IsConfirmed() bool {
	return a.ConfirmedAt != nil && a.ConfirmationSource != nil
}

type CreateAuthIdentityParams struct {
	ID                    string
	Email                 string
	ConfirmationSource    *ConfirmationSource
	ConfirmedAt           *time.Time
	InvitedByCompanyID    *string
	ConfirmationTokenHash *string
	ConfirmationExpiresAt *time.Time
	Now                   time.Time
}
