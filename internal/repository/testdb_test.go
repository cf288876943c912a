package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/tradesmatepro/portal-identity/internal/database"
	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

// setupTestTx connects to TEST_DATABASE_URL, applies the schema and returns a
// transaction that is rolled back when the test ends.
func setupTestTx(t *testing.T) *sqlx.Tx {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })

	return tx
}

// testNow is truncated to the precision PostgreSQL stores.
func testNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func strPtr(s string) *string { return &s }

func createIdentity(t *testing.T, tx *sqlx.Tx, email string) *model.AuthIdentity {
	t.Helper()
	now := testNow()
	source := model.ConfirmationCompanyInvite
	identity, _, err := NewAuthIdentityRepository(tx).Create(context.Background(), model.CreateAuthIdentityParams{
		ID:                 util.NewID(),
		Email:              email,
		ConfirmationSource: &source,
		ConfirmedAt:        &now,
		InvitedByCompanyID: strPtr("company-a"),
		Now:                now,
	})
	require.NoError(t, err)
	return identity
}

func createAccount(t *testing.T, tx *sqlx.Tx, email string) *model.PortalAccount {
	t.Helper()
	identity := createIdentity(t, tx, email)
	account, _, err := NewPortalAccountRepository(tx).Create(context.Background(), model.CreatePortalAccountParams{
		ID:             util.NewID(),
		AuthIdentityID: identity.ID,
		InvitedBy:      strPtr("company-a"),
		Now:            testNow(),
	})
	require.NoError(t, err)
	return account
}

func createCustomer(t *testing.T, tx *sqlx.Tx, key, name string) *model.GlobalCustomer {
	t.Helper()
	customer, _, err := NewCustomerRepository(tx).Upsert(context.Background(), model.UpsertCustomerParams{
		ID:         util.NewID(),
		NaturalKey: key,
		Name:       name,
		Now:        testNow(),
	})
	require.NoError(t, err)
	return customer
}
