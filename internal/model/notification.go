package model

import "time"

type NotificationKind string

const (
	NotificationMagicLink         NotificationKind = "magic_link"
	NotificationEmailConfirmation NotificationKind = "email_confirmation"
	NotificationPortalInvite      NotificationKind = "portal_invite"
)

// EmailNotification is handed to the external email provider. The core never
// renders or sends mail itself.
type EmailNotification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	To        string           `json:"to"`
	URL       string           `json:"url"`
	ExpiresAt time.Time        `json:"expiresAt"`
	CreatedAt time.Time        `json:"createdAt"`
}
