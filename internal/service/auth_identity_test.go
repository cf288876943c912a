package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

func tokenFromURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.Len(t, token, 64)
	return token
}

func TestAuthIdentityProvisioner_FindByEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	identity, err := env.identities.FindByEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, identity)

	identity, err = env.identities.FindByEmail(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, identity)

	_, err = env.identities.CreateInvited(ctx, "jane@x.com", "company-1")
	require.NoError(t, err)

	identity, err = env.identities.FindByEmail(ctx, " JANE@x.com")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "jane@x.com", identity.Email)
}

func TestAuthIdentityProvisioner_CreateInvited(t *testing.T) {
	ctx := context.Background()

	t.Run("records company invite provenance", func(t *testing.T) {
		env := newTestEnv(t)

		identity, err := env.identities.CreateInvited(ctx, "Jane@X.com", "company-1")
		require.NoError(t, err)

		assert.Equal(t, "jane@x.com", identity.Email)
		assert.True(t, identity.IsConfirmed())
		require.NotNil(t, identity.ConfirmationSource)
		assert.Equal(t, model.ConfirmationCompanyInvite, *identity.ConfirmationSource)
		require.NotNil(t, identity.InvitedByCompanyID)
		assert.Equal(t, "company-1", *identity.InvitedByCompanyID)
		assert.Equal(t, env.clock.Now(), *identity.ConfirmedAt)
		assert.Nil(t, identity.ConfirmationTokenHash)
	})

	t.Run("existing identity keeps its provenance", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.identities.CreateInvited(ctx, "jane@x.com", "company-1")
		require.NoError(t, err)
		second, err := env.identities.CreateInvited(ctx, "jane@x.com", "company-2")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "company-1", *second.InvitedByCompanyID)
	})

	t.Run("invite never confirms a pending self-service identity", func(t *testing.T) {
		env := newTestEnv(t)

		pending, err := env.identities.CreateSelfService(ctx, "jane@x.com")
		require.NoError(t, err)
		env.notifier.next(t)

		invited, err := env.identities.CreateInvited(ctx, "jane@x.com", "company-1")
		require.NoError(t, err)

		assert.Equal(t, pending.ID, invited.ID)
		assert.False(t, invited.IsConfirmed())
		assert.Nil(t, invited.InvitedByCompanyID)
	})

	t.Run("validates input", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.identities.CreateInvited(ctx, "", "company-1")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))

		_, err = env.identities.CreateInvited(ctx, "nope", "company-1")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

		_, err = env.identities.CreateInvited(ctx, "jane@x.com", "")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))
	})
}

func TestAuthIdentityProvisioner_SelfService(t *testing.T) {
	ctx := context.Background()

	t.Run("signup then confirm marks identity self verified", func(t *testing.T) {
		env := newTestEnv(t)

		identity, err := env.identities.CreateSelfService(ctx, "jane@x.com")
		require.NoError(t, err)
		assert.False(t, identity.IsConfirmed())
		require.NotNil(t, identity.ConfirmationTokenHash)

		msg := env.notifier.next(t)
		assert.Equal(t, model.NotificationEmailConfirmation, msg.Kind)
		assert.Equal(t, "jane@x.com", msg.To)
		assert.Equal(t, env.clock.Now().Add(24*time.Hour), msg.ExpiresAt)

		token := tokenFromURL(t, msg.URL)
		assert.NotEqual(t, token, *identity.ConfirmationTokenHash)

		env.clock.Advance(time.Hour)
		confirmed, err := env.identities.ConfirmEmail(ctx, token)
		require.NoError(t, err)
		assert.True(t, confirmed.IsConfirmed())
		assert.Equal(t, model.ConfirmationSelfVerified, *confirmed.ConfirmationSource)
		assert.Nil(t, confirmed.InvitedByCompanyID)

		_, err = env.identities.ConfirmEmail(ctx, token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationFailed))
	})

	t.Run("confirmation token expires at its deadline", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.identities.CreateSelfService(ctx, "jane@x.com")
		require.NoError(t, err)
		token := tokenFromURL(t, env.notifier.next(t).URL)

		env.clock.Advance(24 * time.Hour)
		_, err = env.identities.ConfirmEmail(ctx, token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationFailed))
	})

	t.Run("repeat signup returns existing identity without a new email", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.identities.CreateSelfService(ctx, "jane@x.com")
		require.NoError(t, err)
		env.notifier.next(t)

		second, err := env.identities.CreateSelfService(ctx, "jane@x.com")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		select {
		case msg := <-env.notifier.sent:
			t.Fatalf("unexpected notification to %s", msg.To)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("malformed confirmation token", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.identities.ConfirmEmail(ctx, "short")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationFailed))
	})
}

func TestTokenURL(t *testing.T) {
	assert.Equal(t, "https://p.example.com/m?token=abc", tokenURL("https://p.example.com/m", "abc"))
	assert.Equal(t, "https://p.example.com/m?lang=en&token=abc", tokenURL("https://p.example.com/m?lang=en", "abc"))
}
