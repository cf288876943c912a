package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tradesmatepro/portal-identity/internal/database"
	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/metrics"
	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/repository"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

// CustomerIdentityResolver maps a contact onto its canonical global customer.
type CustomerIdentityResolver struct {
	repo  repository.CustomerRepository
	clock Clock
}

func NewCustomerIdentityResolver(repo repository.CustomerRepository, clock Clock) *CustomerIdentityResolver {
	return &CustomerIdentityResolver{repo: repo, clock: orSystemClock(clock)}
}

// NaturalKey derives the deduplication key for a contact: the normalized name
// plus the strongest contact detail present (email, then phone, then street
// address and zip). Two household members sharing an email but not a name
// stay distinct customers.
func NaturalKey(contact model.Contact) string {
	key := util.NormalizeText(contact.Name)

	switch {
	case util.NormalizeEmail(contact.Email) != "":
		return key + "|e:" + util.NormalizeEmail(contact.Email)
	case util.NormalizePhone(contact.Phone) != "":
		return key + "|p:" + util.NormalizePhone(contact.Phone)
	case util.NormalizeText(contact.StreetAddress) != "":
		return key + "|a:" + util.NormalizeText(contact.StreetAddress) + "," + util.NormalizeText(contact.ZipCode)
	}
	return key
}

func trimContact(contact model.Contact) model.Contact {
	return model.Contact{
		Name:          strings.TrimSpace(contact.Name),
		Email:         util.NormalizeEmail(contact.Email),
		Phone:         strings.TrimSpace(contact.Phone),
		StreetAddress: strings.TrimSpace(contact.StreetAddress),
		City:          strings.TrimSpace(contact.City),
		State:         strings.TrimSpace(contact.State),
		ZipCode:       strings.TrimSpace(contact.ZipCode),
	}
}

// FindOrCreate returns the global customer for contact, creating it on first
// sighting. The lookup and insert are one upsert statement, so concurrent
// identical calls converge on a single row.
func (r *CustomerIdentityResolver) FindOrCreate(ctx context.Context, contact model.Contact) (*model.GlobalCustomer, error) {
	contact = trimContact(contact)
	if err := util.ValidateStruct(contact); err != nil {
		return nil, err
	}
	if util.NormalizeText(contact.Name) == "" {
		return nil, apperrors.InvalidInput("name", "must contain letters or digits")
	}

	defer metrics.ObserveSince("customer_upsert", time.Now())

	customer, created, err := r.repo.Upsert(ctx, model.UpsertCustomerParams{
		ID:            util.NewID(),
		NaturalKey:    NaturalKey(contact),
		Name:          contact.Name,
		Email:         util.NilIfBlank(contact.Email),
		Phone:         util.NilIfBlank(contact.Phone),
		StreetAddress: util.NilIfBlank(contact.StreetAddress),
		City:          util.NilIfBlank(contact.City),
		State:         util.NilIfBlank(contact.State),
		ZipCode:       util.NilIfBlank(contact.ZipCode),
		Now:           r.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}

	if created {
		metrics.CustomersResolved.WithLabelValues("created").Inc()
	} else {
		metrics.CustomersResolved.WithLabelValues("matched").Inc()
	}
	return customer, nil
}

func (r *CustomerIdentityResolver) FindByID(ctx context.Context, id string) (*model.GlobalCustomer, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	customer, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return customer, nil
}

// CompanyLinker associates global customers with companies.
type CompanyLinker struct {
	repo  repository.CompanyLinkRepository
	clock Clock
}

func NewCompanyLinker(repo repository.CompanyLinkRepository, clock Clock) *CompanyLinker {
	return &CompanyLinker{repo: repo, clock: orSystemClock(clock)}
}

// Link is idempotent: repeating it returns the original link with created
// set to false.
func (l *CompanyLinker) Link(ctx context.Context, customerID, companyID, addedBy string) (link *model.CompanyCustomerLink, created bool, err error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, false, apperrors.MissingRequired("customerId")
	}
	if strings.TrimSpace(companyID) == "" {
		return nil, false, apperrors.MissingRequired("companyId")
	}
	if !util.IsValidUUID(customerID) {
		return nil, false, apperrors.InvalidInput("customerId", "must be a UUID")
	}

	link, created, err = l.repo.Link(ctx, model.CreateCompanyLinkParams{
		ID:         util.NewID(),
		CompanyID:  strings.TrimSpace(companyID),
		CustomerID: customerID,
		AddedBy:    util.NilIfBlank(addedBy),
		AddedAt:    l.clock(),
	})
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, false, apperrors.NotFound("Customer")
		}
		return nil, false, fmt.Errorf("link customer to company: %w", err)
	}
	return link, created, nil
}

func (l *CompanyLinker) ListForCustomer(ctx context.Context, customerID string) ([]model.CompanyCustomerLink, error) {
	links, err := l.repo.ListByCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list company links: %w", err)
	}
	return links, nil
}
