package model

import (
	"time"
)

// Contact is the caller-supplied description of a real-world customer.
type Contact struct {
	Name          string `json:"name" validate:"required,max=200"`
	Email         string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone         string `json:"phone,omitempty" validate:"omitempty,max=40"`
	StreetAddress string `json:"streetAddress,omitempty" validate:"omitempty,max=200"`
	City          string `json:"city,omitempty" validate:"omitempty,max=100"`
	State         string `json:"state,omitempty" validate:"omitempty,max=100"`
	ZipCode       string `json:"zipCode,omitempty" validate:"omitempty,max=20"`
}

// GlobalCustomer is the canonical cross-company identity of a contact.
type GlobalCustomer struct {
	ID              string    `db:"id" json:"id"`
	NaturalKey      string    `db:"natural_key" json:"-"`
	Name            string    `db:"name" json:"name"`
	Email           *string   `db:"email" json:"email,omitempty"`
	Phone           *string   `db:"phone" json:"phone,omitempty"`
	StreetAddress   *string   `db:"street_address" json:"streetAddress,omitempty"`
	City            *string   `db:"city" json:"city,omitempty"`
	State           *string   `db:"state" json:"state,omitempty"`
	ZipCode         *string   `db:"zip_code" json:"zipCode,omitempty"`
	PortalAccountID *string   `db:"portal_account_id" json:"portalAccountId,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertCustomerParams struct {
	ID            string
	NaturalKey    string
	Name          string
	Email         *string
	Phone         *string
	StreetAddress *string
	City          *string
	State         *string
	ZipCode       *string
	Now           time.Time
}

// CompanyCustomerLink joins a company to a global customer.
type CompanyCustomerLink struct {
	ID               string           `db:"id" json:"id"`
	CompanyID        string           `db:"company_id" json:"companyId"`
	CustomerID       string           `db:"customer_id" json:"customerId"`
	RelationshipType RelationshipType `db:"relationship_type" json:"relationshipType"`
	Status           LinkStatus       `db:"status" json:"status"`
	AddedBy          *string          `db:"added_by" json:"addedBy,omitempty"`
	AddedAt          time.Time        `db:"added_at" json:"addedAt"`
}

type CreateCompanyLinkParams struct {
	ID         string
	CompanyID  string
	CustomerID string
	AddedBy    *string
	AddedAt    time.Time
}
