package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradesmatepro/portal-identity/internal/model"
)

const testSecret = "test-session-secret-0123456789abcdef"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubVerifier struct {
	passwords map[string]string
	err       error
	calls     int
}

func (v *stubVerifier) Verify(_ context.Context, email, password string) (bool, error) {
	v.calls++
	if v.err != nil {
		return false, v.err
	}
	want, ok := v.passwords[email]
	return ok && want == password, nil
}

type captureNotifier struct {
	sent chan model.EmailNotification
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{sent: make(chan model.EmailNotification, 16)}
}

func (n *captureNotifier) Notify(_ context.Context, msg model.EmailNotification) error {
	n.sent <- msg
	return nil
}

func (n *captureNotifier) next(t *testing.T) model.EmailNotification {
	t.Helper()
	select {
	case msg := <-n.sent:
		return msg
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no notification sent")
		return model.EmailNotification{}
	}
}

// none fails if a notification arrives within wait.
func (n *captureNotifier) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case msg := <-n.sent:
		require.FailNow(t, "unexpected notification", "%s to %s", msg.Kind, msg.To)
	case <-time.After(wait):
	}
}

type stubLimiter struct {
	allow bool
	keys  []string
}

func (l *stubLimiter) CheckLimit(_ context.Context, key string, _ int, window time.Duration) (bool, time.Time) {
	l.keys = append(l.keys, key)
	return l.allow, time.Now().Add(window)
}

// testEnv wires every component against one memStore and one fake clock.
type testEnv struct {
	store      *memStore
	clock      *fakeClock
	verifier   *stubVerifier
	notifier   *captureNotifier
	mailer     *Dispatcher
	activity   *ActivityLogger
	customers  *CustomerIdentityResolver
	linker     *CompanyLinker
	identities *AuthIdentityProvisioner
	portal     *PortalAccountManager
	sessions   *SessionManager
}

type envOption func(*SessionConfig)

func withSingleUseMagicLinks() envOption {
	return func(c *SessionConfig) { c.MagicLinkSingleUse = true }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    newMemStore(),
		clock:    newFakeClock(),
		verifier: &stubVerifier{passwords: map[string]string{}},
		notifier: newCaptureNotifier(),
	}
	clock := Clock(env.clock.Now)

	env.activity = NewActivityLogger(env.store.activityRepo(), clock)
	env.customers = NewCustomerIdentityResolver(env.store.customerRepo(), clock)
	env.linker = NewCompanyLinker(env.store.linkRepo(), clock)
	env.mailer = NewDispatcher(env.notifier)
	env.identities = NewAuthIdentityProvisioner(env.store.identityRepo(), env.mailer, AuthIdentityConfig{
		TokenSecret:     testSecret,
		ConfirmationTTL: 24 * time.Hour,
		ConfirmURLBase:  "https://portal.example.com/confirm-email",
		Clock:           clock,
	})

	cfg := SessionConfig{
		TokenSecret:      testSecret,
		SessionTTL:       24 * time.Hour,
		MagicLinkTTL:     15 * time.Minute,
		MagicLinkURLBase: "https://portal.example.com/magic",
		InvitationTTL:    72 * time.Hour,
		Clock:            clock,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	env.sessions = NewSessionManager(
		env.store.sessionRepo(),
		env.store.accountRepo(),
		env.verifier,
		env.mailer,
		nil,
		env.activity,
		cfg,
	)
	env.portal = NewPortalAccountManager(
		env.customers,
		env.linker,
		env.identities,
		env.store.accountRepo(),
		env.store.customerRepo(),
		env.activity,
		env.sessions,
		clock,
	)
	return env
}

// provisionJane invites jane@x.com through company-1 and consumes the
// invitation email, leaving the notifier empty for the caller.
func (e *testEnv) provisionJane(t *testing.T) *ProvisionResult {
	t.Helper()
	result, err := e.portal.AddCustomerWithPortalAccount(context.Background(),
		model.Contact{Name: "Jane Doe", Email: "jane@x.com"}, "company-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, result.PortalAccount)
	if !result.IsExisting {
		require.Equal(t, model.NotificationPortalInvite, e.notifier.next(t).Kind)
	}
	return result
}
