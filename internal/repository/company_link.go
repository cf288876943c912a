package repository

import (
	"context"

	"github.com/tradesmatepro/portal-identity/internal/database"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

type CompanyLinkRepository interface {
	// Link inserts the (company, customer) pair or returns the existing link untouched.
	Link(ctx context.Context, params model.CreateCompanyLinkParams) (*model.CompanyCustomerLink, bool, error)
	ListByCustomerID(ctx context.Context, customerID string) ([]model.CompanyCustomerLink, error)
}

type companyLinkRepo struct {
	db database.DBTX
}

func NewCompanyLinkRepository(db database.DBTX) CompanyLinkRepository {
	return &companyLinkRepo{db: db}
}

type upsertedLink struct {
	model.CompanyCustomerLink
	Inserted bool `db:"inserted"`
}

func (r *companyLinkRepo) Link(ctx context.Context, params model.CreateCompanyLinkParams) (*model.CompanyCustomerLink, bool, error) {
	var row upsertedLink
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO company_customers (id, company_id, customer_id, relationship_type, status, added_by, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id, customer_id) DO UPDATE SET company_id = EXCLUDED.company_id
		RETURNING *, `+insertedColumn,
		params.ID, params.CompanyID, params.CustomerID, model.RelationshipClient, model.LinkStatusActive,
		params.AddedBy, params.AddedAt)
	if err != nil {
		return nil, false, err
	}
	return &row.CompanyCustomerLink, row.Inserted, nil
}

func (r *companyLinkRepo) ListByCustomerID(ctx context.Context, customerID string) ([]model.CompanyCustomerLink, error) {
	var links []model.CompanyCustomerLink
	err := r.db.SelectContext(ctx, &links, `
		SELECT * FROM company_customers WHERE customer_id = $1 ORDER BY added_at
	`, customerID)
	return links, err
}
