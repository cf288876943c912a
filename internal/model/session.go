package model

import (
	"time"
)

type Session struct {
	ID              string      `db:"id" json:"id"`
	PortalAccountID string      `db:"portal_account_id" json:"portalAccountId"`
	TokenHash       string      `db:"token_hash" json:"-"`
	Kind            SessionKind `db:"kind" json:"kind"`
	IPAddress       *string     `db:"ip_address" json:"ipAddress,omitempty"`
	UserAgent       *string     `db:"user_agent" json:"userAgent,omitempty"`
	ExpiresAt       time.Time   `db:"expires_at" json:"expiresAt"`
	LastAccessed    *time.Time  `db:"last_accessed" json:"lastAccessed,omitempty"`
	ConsumedAt      *time.Time  `db:"consumed_at" json:"consumedAt,omitempty"`
	RevokedAt       *time.Time  `db:"revoked_at" json:"revokedAt,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
}

// IsValidAt reports whether the session authenticates at instant now.
// Validity is exclusive: a session whose expires_at equals now is expired.
func (s *Session) IsValidAt(now time.Time) bool {
	if s.RevokedAt != nil || s.ConsumedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

type CreateSessionParams struct {
	ID              string
	PortalAccountID string
	TokenHash       string
	Kind            SessionKind
	IPAddress       *string
	UserAgent       *string
	ExpiresAt       time.Time
	Now             time.Time
}
