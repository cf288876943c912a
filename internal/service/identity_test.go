package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

func TestNaturalKey(t *testing.T) {
	tests := []struct {
		name    string
		contact model.Contact
		want    string
	}{
		{"email wins", model.Contact{Name: "Jane Doe", Email: " Jane@X.com ", Phone: "555"}, "jane doe|e:jane@x.com"},
		{"phone digits", model.Contact{Name: "Jane Doe", Phone: "(555) 010-2000"}, "jane doe|p:5550102000"},
		{"address", model.Contact{Name: "Jane Doe", StreetAddress: "12 Main St.", ZipCode: "90210"}, "jane doe|a:12 main st,90210"},
		{"name only", model.Contact{Name: "  Jane   DOE "}, "jane doe"},
		{"punctuation in name", model.Contact{Name: "Jane D.", Email: "jane@x.com"}, "jane d|e:jane@x.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NaturalKey(tt.contact))
		})
	}
}

func TestCustomerIdentityResolver_FindOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("same contact resolves to the same customer", func(t *testing.T) {
		env := newTestEnv(t)
		contact := model.Contact{Name: "Jane Doe", Email: "jane@x.com", Phone: "555-0100"}

		first, err := env.customers.FindOrCreate(ctx, contact)
		require.NoError(t, err)
		second, err := env.customers.FindOrCreate(ctx, contact)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, env.store.customerCount())
	})

	t.Run("normalization makes formatting differences irrelevant", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "Jane Doe", Email: "jane@x.com"})
		require.NoError(t, err)
		second, err := env.customers.FindOrCreate(ctx, model.Contact{Name: " jane  doe", Email: "JANE@X.COM "})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("first sighting wins", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "Jane Doe", Email: "jane@x.com", City: "Springfield"})
		require.NoError(t, err)
		second, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "Jane Doe", Email: "jane@x.com", City: "Shelbyville"})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		require.NotNil(t, second.City)
		assert.Equal(t, "Springfield", *second.City)
	})

	t.Run("household members sharing an email stay distinct", func(t *testing.T) {
		env := newTestEnv(t)

		jane, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "Jane Doe", Email: "home@x.com"})
		require.NoError(t, err)
		john, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "John Doe", Email: "home@x.com"})
		require.NoError(t, err)

		assert.NotEqual(t, jane.ID, john.ID)
	})

	t.Run("concurrent identical calls converge", func(t *testing.T) {
		env := newTestEnv(t)
		contact := model.Contact{Name: "Jane Doe", Email: "jane@x.com"}

		var wg sync.WaitGroup
		ids := make([]string, 20)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c, err := env.customers.FindOrCreate(ctx, contact)
				if err == nil {
					ids[i] = c.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
		assert.Equal(t, 1, env.store.customerCount())
	})

	t.Run("missing name is a validation error", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "   ", Email: "jane@x.com"})
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))
		assert.Equal(t, 0, env.store.customerCount())
	})

	t.Run("name without letters or digits is rejected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "..."})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("malformed email is rejected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "Jane", Email: "not-an-email"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	})
}

func TestCustomerIdentityResolver_FindByID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "Jane Doe"})
	require.NoError(t, err)

	found, err := env.customers.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	missing, err := env.customers.FindByID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCompanyLinker_Link(t *testing.T) {
	ctx := context.Background()

	t.Run("second link returns the first and creates nothing", func(t *testing.T) {
		env := newTestEnv(t)
		customer, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "Jane Doe"})
		require.NoError(t, err)

		first, created, err := env.linker.Link(ctx, customer.ID, "company-1", "user-1")
		require.NoError(t, err)
		assert.True(t, created)

		env.clock.Advance(1)
		second, created, err := env.linker.Link(ctx, customer.ID, "company-1", "user-2")
		require.NoError(t, err)
		assert.False(t, created)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.AddedAt, second.AddedAt)
		require.NotNil(t, second.AddedBy)
		assert.Equal(t, "user-1", *second.AddedBy)
		assert.Equal(t, 1, env.store.linkCount())
	})

	t.Run("one customer may belong to many companies", func(t *testing.T) {
		env := newTestEnv(t)
		customer, err := env.customers.FindOrCreate(ctx, model.Contact{Name: "Jane Doe"})
		require.NoError(t, err)

		_, _, err = env.linker.Link(ctx, customer.ID, "company-1", "")
		require.NoError(t, err)
		_, _, err = env.linker.Link(ctx, customer.ID, "company-2", "")
		require.NoError(t, err)

		links, err := env.linker.ListForCustomer(ctx, customer.ID)
		require.NoError(t, err)
		assert.Len(t, links, 2)
		for _, l := range links {
			assert.Equal(t, model.RelationshipClient, l.RelationshipType)
			assert.Equal(t, model.LinkStatusActive, l.Status)
			assert.Nil(t, l.AddedBy)
		}
	})

	t.Run("unknown customer is not found", func(t *testing.T) {
		env := newTestEnv(t)

		_, _, err := env.linker.Link(ctx, "7f1d8a52-9d0e-4d7e-9a43-1f0c3b2a6e11", "company-1", "")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("requires ids", func(t *testing.T) {
		env := newTestEnv(t)

		_, _, err := env.linker.Link(ctx, "", "company-1", "")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))

		_, _, err = env.linker.Link(ctx, "7f1d8a52-9d0e-4d7e-9a43-1f0c3b2a6e11", " ", "")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))

		_, _, err = env.linker.Link(ctx, "customer-1", "company-1", "")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	})
}
