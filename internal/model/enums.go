package model

type RelationshipType string

const (
	RelationshipClient RelationshipType = "client"
)

type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusInactive LinkStatus = "inactive"
)

// ConfirmationSource records why an auth identity's email is trusted.
type ConfirmationSource string

const (
	ConfirmationCompanyInvite ConfirmationSource = "company_invite"
	ConfirmationSelfVerified  ConfirmationSource = "self_verified"
)

type PortalAccountStatus string

const (
	PortalAccountPendingSetup PortalAccountStatus = "pending_setup"
	PortalAccountActive       PortalAccountStatus = "active"
	PortalAccountDeactivated  PortalAccountStatus = "deactivated"
)

type SessionKind string

const (
	SessionKindStandard  SessionKind = "standard"
	SessionKindMagicLink SessionKind = "magic_link"
)

type ActivityAction string

const (
	ActivityLogin              ActivityAction = "login"
	ActivityLogout             ActivityAction = "logout"
	ActivityMagicLinkIssued    ActivityAction = "magic_link_issued"
	ActivityMagicLinkExchanged ActivityAction = "magic_link_exchanged"
	ActivityAccountProvisioned ActivityAction = "portal_account_provisioned"
	ActivityAccountAttached    ActivityAction = "portal_account_attached"
	ActivityPasswordSetup      ActivityAction = "password_setup_completed"
	ActivityAccountDeactivated ActivityAction = "portal_account_deactivated"
)
