package repository

import (
	"context"
	"time"

	"github.com/tradesmatepro/portal-identity/internal/database"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

type CustomerRepository interface {
	// Upsert inserts a customer or returns the row already holding the natural key.
	Upsert(ctx context.Context, params model.UpsertCustomerParams) (*model.GlobalCustomer, bool, error)
	FindByID(ctx context.Context, id string) (*model.GlobalCustomer, error)
	ListByPortalAccountID(ctx context.Context, portalAccountID string) ([]model.GlobalCustomer, error)
	// AttachPortalAccount sets portal_account_id when it is unset or already equal.
	// It returns nil when the customer is missing or bound to another account.
	AttachPortalAccount(ctx context.Context, customerID, portalAccountID string, now time.Time) (*model.GlobalCustomer, error)
}

type customerRepo struct {
	db database.DBTX
}

func NewCustomerRepository(db database.DBTX) CustomerRepository {
	return &customerRepo{db: db}
}

type upsertedCustomer struct {
	model.GlobalCustomer
	Inserted bool `db:"inserted"`
}

func (r *customerRepo) Upsert(ctx context.Context, params model.UpsertCustomerParams) (*model.GlobalCustomer, bool, error) {
	var row upsertedCustomer
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO global_customers (
			id, natural_key, name, email, phone, street_address, city, state, zip_code,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (natural_key) DO UPDATE SET natural_key = EXCLUDED.natural_key
		RETURNING *, `+insertedColumn,
		params.ID, params.NaturalKey, params.Name, params.Email, params.Phone,
		params.StreetAddress, params.City, params.State, params.ZipCode, params.Now)
	if err != nil {
		return nil, false, err
	}
	return &row.GlobalCustomer, row.Inserted, nil
}

func (r *customerRepo) FindByID(ctx context.Context, id string) (*model.GlobalCustomer, error) {
	var customer model.GlobalCustomer
	err := r.db.GetContext(ctx, &customer, `SELECT * FROM global_customers WHERE id = $1`, id)
	return HandleNotFound(&customer, err)
}

func (r *customerRepo) ListByPortalAccountID(ctx context.Context, portalAccountID string) ([]model.GlobalCustomer, error) {
	var customers []model.GlobalCustomer
	err := r.db.SelectContext(ctx, &customers, `
		SELECT * FROM global_customers
		WHERE portal_account_id = $1
		ORDER BY created_at
	`, portalAccountID)
	return customers, err
}

func (r *customerRepo) AttachPortalAccount(ctx context.Context, customerID, portalAccountID string, now time.Time) (*model.GlobalCustomer, error) {
	var customer model.GlobalCustomer
	err := r.db.GetContext(ctx, &customer, `
		UPDATE global_customers SET
			portal_account_id = $2,
			updated_at = CASE WHEN portal_account_id IS NULL THEN $3 ELSE updated_at END
		WHERE id = $1
		AND (portal_account_id IS NULL OR portal_account_id = $2)
		RETURNING *
	`, customerID, portalAccountID, now)
	return HandleNotFound(&customer, err)
}
