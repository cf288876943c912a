package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/audit"
	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/metrics"
	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/repository"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

const (
	outcomeNoEmail          = "no_email"
	outcomeCustomerAccount  = "existing_customer_account"
	outcomeAttachedExisting = "attached_existing_account"
	outcomeCreated          = "created_account"
)

type ProvisionResult struct {
	Customer      *model.GlobalCustomer      `json:"customer"`
	Link          *model.CompanyCustomerLink `json:"link"`
	PortalAccount *model.PortalAccount       `json:"portalAccount"`
	IsExisting    bool                       `json:"isExisting"`
}

type PortalStatus struct {
	HasPortalAccount bool                      `json:"hasPortalAccount"`
	Email            string                    `json:"email,omitempty"`
	PortalAccountID  string                    `json:"portalAccountId,omitempty"`
	Status           model.PortalAccountStatus `json:"status,omitempty"`
}

// Inviter sends a newly created portal account its first sign-in link.
type Inviter interface {
	SendInvitation(ctx context.Context, account *model.PortalAccount, email string) error
}

// PortalAccountManager provisions portal accounts for customers and drives
// their lifecycle.
type PortalAccountManager struct {
	customers  *CustomerIdentityResolver
	linker     *CompanyLinker
	identities *AuthIdentityProvisioner
	accounts   repository.PortalAccountRepository
	customerDB repository.CustomerRepository
	activity   *ActivityLogger
	inviter    Inviter
	clock      Clock
}

func NewPortalAccountManager(
	customers *CustomerIdentityResolver,
	linker *CompanyLinker,
	identities *AuthIdentityProvisioner,
	accounts repository.PortalAccountRepository,
	customerDB repository.CustomerRepository,
	activity *ActivityLogger,
	inviter Inviter,
	clock Clock,
) *PortalAccountManager {
	return &PortalAccountManager{
		customers:  customers,
		linker:     linker,
		identities: identities,
		accounts:   accounts,
		customerDB: customerDB,
		activity:   activity,
		inviter:    inviter,
		clock:      orSystemClock(clock),
	}
}

// AddCustomerWithPortalAccount resolves the contact, links it to the company
// and makes sure a customer with an email ends up bound to exactly one portal
// account. Every step is idempotent, so a retried call converges on the same
// rows.
func (m *PortalAccountManager) AddCustomerWithPortalAccount(
	ctx context.Context,
	contact model.Contact,
	companyID string,
	addedBy string,
) (*ProvisionResult, error) {
	defer metrics.ObserveSince("provision", time.Now())

	customer, err := m.customers.FindOrCreate(ctx, contact)
	if err != nil {
		return nil, err
	}

	link, _, err := m.linker.Link(ctx, customer.ID, companyID, addedBy)
	if err != nil {
		return nil, err
	}

	result := &ProvisionResult{Customer: customer, Link: link}

	email := util.NormalizeEmail(contact.Email)
	if email == "" {
		metrics.Provisioning.WithLabelValues(outcomeNoEmail).Inc()
		return result, nil
	}

	if customer.PortalAccountID != nil {
		account, err := m.accounts.FindByID(ctx, *customer.PortalAccountID)
		if err != nil {
			return nil, fmt.Errorf("find portal account: %w", err)
		}
		if account == nil {
			return nil, apperrors.Internal("customer references a missing portal account")
		}
		result.PortalAccount = account
		result.IsExisting = true

		metrics.Provisioning.WithLabelValues(outcomeCustomerAccount).Inc()
		m.activity.Log(ctx, ActivityEvent{
			PortalAccountID: account.ID,
			Action:          model.ActivityAccountAttached,
			ResourceType:    "customer",
			ResourceID:      customer.ID,
			Metadata:        map[string]any{"companyId": companyID, "existing": true},
		})
		return result, nil
	}

	identity, err := m.identities.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if identity != nil {
		account, err := m.accounts.FindByAuthIdentityID(ctx, identity.ID)
		if err != nil {
			return nil, fmt.Errorf("find portal account by identity: %w", err)
		}
		if account != nil {
			if result.Customer, err = m.attach(ctx, customer.ID, account.ID); err != nil {
				return nil, err
			}
			result.PortalAccount = account
			result.IsExisting = true

			metrics.Provisioning.WithLabelValues(outcomeAttachedExisting).Inc()
			m.activity.Log(ctx, ActivityEvent{
				PortalAccountID: account.ID,
				Action:          model.ActivityAccountAttached,
				ResourceType:    "customer",
				ResourceID:      customer.ID,
				Metadata:        map[string]any{"companyId": companyID, "existing": true},
			})
			return result, nil
		}
	} else {
		if identity, err = m.identities.CreateInvited(ctx, email, companyID); err != nil {
			return nil, err
		}
	}

	account, created, err := m.accounts.Create(ctx, model.CreatePortalAccountParams{
		ID:             util.NewID(),
		AuthIdentityID: identity.ID,
		InvitedBy:      &companyID,
		Now:            m.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("create portal account: %w", err)
	}

	if result.Customer, err = m.attach(ctx, customer.ID, account.ID); err != nil {
		return nil, err
	}
	result.PortalAccount = account
	// A concurrent provision for the same email may have won the insert.
	result.IsExisting = !created

	// Only the call that created the account invites, so retries stay silent.
	if created {
		m.invite(ctx, account, email)
	}

	metrics.Provisioning.WithLabelValues(outcomeCreated).Inc()
	audit.Log(ctx, audit.Event{
		Type:            audit.EventAccountProvision,
		PortalAccountID: account.ID,
		CompanyID:       companyID,
		Email:           email,
		Details:         map[string]interface{}{"customer_id": customer.ID, "created": created},
	})
	m.activity.Log(ctx, ActivityEvent{
		PortalAccountID: account.ID,
		Action:          model.ActivityAccountProvisioned,
		ResourceType:    "customer",
		ResourceID:      customer.ID,
		Metadata:        map[string]any{"companyId": companyID, "addedBy": addedBy},
	})
	return result, nil
}

func (m *PortalAccountManager) invite(ctx context.Context, account *model.PortalAccount, email string) {
	if m.inviter == nil {
		log.Warn().Str("portalAccountId", account.ID).Msg("no inviter configured, invitation not sent")
		return
	}
	if err := m.inviter.SendInvitation(ctx, account, email); err != nil {
		log.Warn().Err(err).Str("portalAccountId", account.ID).Msg("failed to send portal invitation")
	}
}

// attach binds the customer to accountID. A customer already bound to a
// different account is a conflict, never silently rebound.
func (m *PortalAccountManager) attach(ctx context.Context, customerID, accountID string) (*model.GlobalCustomer, error) {
	customer, err := m.customerDB.AttachPortalAccount(ctx, customerID, accountID, m.clock())
	if err != nil {
		return nil, fmt.Errorf("attach portal account: %w", err)
	}
	if customer == nil {
		return nil, apperrors.Conflict("Customer is already linked to a different portal account")
	}
	return customer, nil
}

// CheckPortalStatus never fails; a read error reports no portal account.
func (m *PortalAccountManager) CheckPortalStatus(ctx context.Context, customerID string) PortalStatus {
	customer, err := m.customers.FindByID(ctx, customerID)
	if err != nil {
		log.Warn().Err(err).Str("customerId", customerID).Msg("portal status lookup failed")
		return PortalStatus{}
	}
	if customer == nil || customer.PortalAccountID == nil {
		return PortalStatus{}
	}

	status := PortalStatus{
		HasPortalAccount: true,
		PortalAccountID:  *customer.PortalAccountID,
	}

	account, err := m.accounts.FindByID(ctx, status.PortalAccountID)
	if err != nil || account == nil {
		log.Warn().Err(err).Str("portalAccountId", status.PortalAccountID).Msg("portal account lookup failed")
		return status
	}
	status.Status = account.Status

	identity, err := m.identities.FindByID(ctx, account.AuthIdentityID)
	if err != nil || identity == nil {
		log.Warn().Err(err).Str("authIdentityId", account.AuthIdentityID).Msg("auth identity lookup failed")
		return status
	}
	status.Email = identity.Email
	return status
}

func (m *PortalAccountManager) GetPortalAccount(ctx context.Context, accountID string) (*model.PortalAccount, error) {
	if !util.IsValidUUID(accountID) {
		return nil, apperrors.NotFound("Portal account")
	}
	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("find portal account: %w", err)
	}
	if account == nil {
		return nil, apperrors.NotFound("Portal account")
	}
	return account, nil
}

// ListCustomers returns the global customers the account may act as.
func (m *PortalAccountManager) ListCustomers(ctx context.Context, accountID string) ([]model.GlobalCustomer, error) {
	customers, err := m.customerDB.ListByPortalAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

// CompletePasswordSetup moves a pending account to active. Repeating it on an
// active account is a no-op; a deactivated account cannot be reactivated here.
func (m *PortalAccountManager) CompletePasswordSetup(ctx context.Context, accountID string) (*model.PortalAccount, error) {
	if !util.IsValidUUID(accountID) {
		return nil, apperrors.NotFound("Portal account")
	}

	account, err := m.accounts.CompleteSetup(ctx, accountID, m.clock())
	if err != nil {
		return nil, fmt.Errorf("complete password setup: %w", err)
	}
	if account == nil {
		current, err := m.GetPortalAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if current.Status == model.PortalAccountDeactivated {
			return nil, apperrors.Conflict("Portal account is deactivated")
		}
		return current, nil
	}

	audit.Log(ctx, audit.Event{Type: audit.EventPasswordSetup, PortalAccountID: account.ID})
	m.activity.Log(ctx, ActivityEvent{
		PortalAccountID: account.ID,
		Action:          model.ActivityPasswordSetup,
		ResourceType:    "portal_account",
		ResourceID:      account.ID,
	})
	return account, nil
}

// Deactivate disables the account and revokes every live session it holds.
func (m *PortalAccountManager) Deactivate(ctx context.Context, accountID, reason string) (*model.PortalAccount, error) {
	if !util.IsValidUUID(accountID) {
		return nil, apperrors.NotFound("Portal account")
	}

	account, err := m.accounts.Deactivate(ctx, accountID, m.clock())
	if err != nil {
		return nil, fmt.Errorf("deactivate portal account: %w", err)
	}
	if account == nil {
		return m.GetPortalAccount(ctx, accountID)
	}

	audit.Log(ctx, audit.Event{
		Type:            audit.EventAccountDeactivate,
		PortalAccountID: account.ID,
		Details:         map[string]interface{}{"reason": reason},
	})
	m.activity.Log(ctx, ActivityEvent{
		PortalAccountID: account.ID,
		Action:          model.ActivityAccountDeactivated,
		ResourceType:    "portal_account",
		ResourceID:      account.ID,
		Metadata:        map[string]any{"reason": reason},
	})
	return account, nil
}
