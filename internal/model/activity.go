package model

import (
	"encoding/json"
	"time"
)

type ActivityLogEntry struct {
	ID              string          `db:"id" json:"id"`
	PortalAccountID *string         `db:"portal_account_id" json:"portalAccountId,omitempty"`
	Action          ActivityAction  `db:"action" json:"action"`
	ResourceType    *string         `db:"resource_type" json:"resourceType,omitempty"`
	ResourceID      *string         `db:"resource_id" json:"resourceId,omitempty"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	IPAddress       *string         `db:"ip_address" json:"ipAddress,omitempty"`
	UserAgent       *string         `db:"user_agent" json:"userAgent,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
}
