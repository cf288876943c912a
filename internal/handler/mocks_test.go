package handler

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/tradesmatepro/portal-identity/internal/middleware"
	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/service"
)

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Authenticate(ctx context.Context, email, password string) (*service.LoginResult, error) {
	args := m.Called(ctx, email, password)
	result, _ := args.Get(0).(*service.LoginResult)
	return result, args.Error(1)
}

func (m *mockSessions) GenerateMagicLink(ctx context.Context, email string) (*service.MagicLinkResult, error) {
	args := m.Called(ctx, email)
	result, _ := args.Get(0).(*service.MagicLinkResult)
	return result, args.Error(1)
}

func (m *mockSessions) ExchangeMagicLink(ctx context.Context, token string) (*service.LoginResult, error) {
	args := m.Called(ctx, token)
	result, _ := args.Get(0).(*service.LoginResult)
	return result, args.Error(1)
}

func (m *mockSessions) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) CompletePasswordSetup(ctx context.Context, accountID string) (*model.PortalAccount, error) {
	args := m.Called(ctx, accountID)
	account, _ := args.Get(0).(*model.PortalAccount)
	return account, args.Error(1)
}

func (m *mockAccounts) ListCustomers(ctx context.Context, accountID string) ([]model.GlobalCustomer, error) {
	args := m.Called(ctx, accountID)
	customers, _ := args.Get(0).([]model.GlobalCustomer)
	return customers, args.Error(1)
}

type mockSignup struct {
	mock.Mock
}

func (m *mockSignup) CreateSelfService(ctx context.Context, email string) (*model.AuthIdentity, error) {
	args := m.Called(ctx, email)
	identity, _ := args.Get(0).(*model.AuthIdentity)
	return identity, args.Error(1)
}

func (m *mockSignup) ConfirmEmail(ctx context.Context, token string) (*model.AuthIdentity, error) {
	args := m.Called(ctx, token)
	identity, _ := args.Get(0).(*model.AuthIdentity)
	return identity, args.Error(1)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) FindOrCreate(ctx context.Context, contact model.Contact) (*model.GlobalCustomer, error) {
	args := m.Called(ctx, contact)
	customer, _ := args.Get(0).(*model.GlobalCustomer)
	return customer, args.Error(1)
}

type mockLinker struct {
	mock.Mock
}

func (m *mockLinker) Link(ctx context.Context, customerID, companyID, addedBy string) (*model.CompanyCustomerLink, bool, error) {
	args := m.Called(ctx, customerID, companyID, addedBy)
	link, _ := args.Get(0).(*model.CompanyCustomerLink)
	return link, args.Bool(1), args.Error(2)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) AddCustomerWithPortalAccount(ctx context.Context, contact model.Contact, companyID, addedBy string) (*service.ProvisionResult, error) {
	args := m.Called(ctx, contact, companyID, addedBy)
	result, _ := args.Get(0).(*service.ProvisionResult)
	return result, args.Error(1)
}

func (m *mockProvisioner) CheckPortalStatus(ctx context.Context, customerID string) service.PortalStatus {
	return m.Called(ctx, customerID).Get(0).(service.PortalStatus)
}

func (m *mockProvisioner) Deactivate(ctx context.Context, accountID, reason string) (*model.PortalAccount, error) {
	args := m.Called(ctx, accountID, reason)
	account, _ := args.Get(0).(*model.PortalAccount)
	return account, args.Error(1)
}

func passthrough(next http.Handler) http.Handler { return next }

// sessionAs stands in for the session middleware with a fixed account.
func sessionAs(account *model.PortalAccount, token string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithPortalAccount(r.Context(), account, token)))
		})
	}
}
