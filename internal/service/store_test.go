package service

import (
	"context"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/tradesmatepro/portal-identity/internal/model"
)

// memStore is an in-memory stand-in for the PostgreSQL schema. Every method
// holds the lock for its whole body, mirroring the single-statement atomicity
// the SQL repositories rely on.
type memStore struct {
	mu         sync.Mutex
	customers  map[string]model.GlobalCustomer
	links      map[string]model.CompanyCustomerLink
	identities map[string]model.AuthIdentity
	accounts   map[string]model.PortalAccount
	sessions   map[string]model.Session
	activity   []model.ActivityLogEntry

	activityErr     error
	customerFindErr error
	touchErr        error
}

func newMemStore() *memStore {
	return &memStore{
		customers:  make(map[string]model.GlobalCustomer),
		links:      make(map[string]model.CompanyCustomerLink),
		identities: make(map[string]model.AuthIdentity),
		accounts:   make(map[string]model.PortalAccount),
		sessions:   make(map[string]model.Session),
	}
}

func (s *memStore) customerRepo() *memCustomers { return &memCustomers{s} }
func (s *memStore) linkRepo() *memLinks { return &memLinks{s} }
func (s *memStore) identityRepo() *memIdentities { return &memIdentities{s} }
func (s *memStore) accountRepo() *memAccounts { return &memAccounts{s} }
func (s *memStore) sessionRepo() *memSessions { return &memSessions{s} }
func (s *memStore) activityRepo() *memActivity { return &memActivity{s} }

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *memStore) customerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.customers)
}

func (s *memStore) accountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *memStore) linkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

func (s *memStore) activityActions() []model.ActivityAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]model.ActivityAction, 0, len(s.activity))
	for _, e := range s.activity {
		actions = append(actions, e.Action)
	}
	return actions
}

func (s *memStore) lastActivity() model.ActivityLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.activity) == 0 {
		return model.ActivityLogEntry{}
	}
	return s.activity[len(s.activity)-1]
}

func (s *memStore) sessionByHash(hash string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[hash]
	return session, ok
}

type memCustomers struct{ s *memStore }

func (r *memCustomers) Upsert(_ context.Context, p model.UpsertCustomerParams) (*model.GlobalCustomer, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.customers {
		if c.NaturalKey == p.NaturalKey {
			return &c, false, nil
		}
	}
	c := model.GlobalCustomer{
		ID: p.ID, NaturalKey: p.NaturalKey, Name: p.Name, Email: p.Email, Phone: p.Phone,
		StreetAddress: p.StreetAddress, City: p.City, State: p.State, ZipCode: p.ZipCode,
		CreatedAt: p.Now, UpdatedAt: p.Now,
	}
	r.s.customers[c.ID] = c
	return &c, true, nil
}

func (r *memCustomers) FindByID(_ context.Context, id string) (*model.GlobalCustomer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.customerFindErr != nil {
		return nil, r.s.customerFindErr
	}
	c, ok := r.s.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memCustomers) ListByPortalAccountID(_ context.Context, accountID string) ([]model.GlobalCustomer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.GlobalCustomer
	for _, c := range r.s.customers {
		if c.PortalAccountID != nil && *c.PortalAccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memCustomers) AttachPortalAccount(_ context.Context, customerID, accountID string, now time.Time) (*model.GlobalCustomer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[customerID]
	if !ok {
		return nil, nil
	}
	if c.PortalAccountID != nil && *c.PortalAccountID != accountID {
		return nil, nil
	}
	if c.PortalAccountID == nil {
		c.PortalAccountID = &accountID
		c.UpdatedAt = now
		r.s.customers[customerID] = c
	}
	return &c, nil
}

type memLinks struct{ s *memStore }

func (r *memLinks) Link(_ context.Context, p model.CreateCompanyLinkParams) (*model.CompanyCustomerLink, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[p.CustomerID]; !ok {
		return nil, false, &pq.Error{Code: "23503", Constraint: "company_customers_customer_id_fkey"}
	}
	key := p.CompanyID + "/" + p.CustomerID
	if l, ok := r.s.links[key]; ok {
		return &l, false, nil
	}
	l := model.CompanyCustomerLink{
		ID: p.ID, CompanyID: p.CompanyID, CustomerID: p.CustomerID,
		RelationshipType: model.RelationshipClient, Status: model.LinkStatusActive,
		AddedBy: p.AddedBy, AddedAt: p.AddedAt,
	}
	r.s.links[key] = l
	return &l, true, nil
}

func (r *memLinks) ListByCustomerID(_ context.Context, customerID string) ([]model.CompanyCustomerLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CompanyCustomerLink
	for _, l := range r.s.links {
		if l.CustomerID == customerID {
			out = append(out, l)
		}
	}
	return out, nil
}

type memIdentities struct{ s *memStore }

func (r *memIdentities) FindByID(_ context.Context, id string) (*model.AuthIdentity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range r.s.identities {
		if i.ID == id {
			return &i, nil
		}
	}
	return nil, nil
}

func (r *memIdentities) FindByEmail(_ context.Context, email string) (*model.AuthIdentity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.identities[email]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r *memIdentities) Create(_ context.Context, p model.CreateAuthIdentityParams) (*model.AuthIdentity, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if i, ok := r.s.identities[p.Email]; ok {
		return &i, false, nil
	}
	i := model.AuthIdentity{
		ID: p.ID, Email: p.Email, ConfirmationSource: p.ConfirmationSource, ConfirmedAt: p.ConfirmedAt,
		InvitedByCompanyID: p.InvitedByCompanyID, ConfirmationTokenHash: p.ConfirmationTokenHash,
		ConfirmationExpiresAt: p.ConfirmationExpiresAt, CreatedAt: p.Now,
	}
	r.s.identities[p.Email] = i
	return &i, true, nil
}

func (r *memIdentities) ConfirmByTokenHash(_ context.Context, hash string, now time.Time) (*model.AuthIdentity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for email, i := range r.s.identities {
		if i.ConfirmationTokenHash == nil || *i.ConfirmationTokenHash != hash {
			continue
		}
		if i.ConfirmedAt != nil || i.ConfirmationExpiresAt == nil || !now.Before(*i.ConfirmationExpiresAt) {
			return nil, nil
		}
		source := model.ConfirmationSelfVerified
		i.ConfirmationSource = &source
		i.ConfirmedAt = &now
		i.ConfirmationTokenHash = nil
		i.ConfirmationExpiresAt = nil
		r.s.identities[email] = i
		return &i, nil
	}
	return nil, nil
}

type memAccounts struct{ s *memStore }

func (r *memAccounts) FindByID(_ context.Context, id string) (*model.PortalAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memAccounts) FindByAuthIdentityID(_ context.Context, identityID string) (*model.PortalAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.AuthIdentityID == identityID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *memAccounts) FindByEmail(_ context.Context, email string) (*model.PortalAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.identities[email]
	if !ok {
		return nil, nil
	}
	for _, a := range r.s.accounts {
		if a.AuthIdentityID == i.ID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *memAccounts) Create(_ context.Context, p model.CreatePortalAccountParams) (*model.PortalAccount, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.AuthIdentityID == p.AuthIdentityID {
			return &a, false, nil
		}
	}
	a := model.PortalAccount{
		ID: p.ID, AuthIdentityID: p.AuthIdentityID, InvitedBy: p.InvitedBy,
		Status: model.PortalAccountPendingSetup, CreatedAt: p.Now, UpdatedAt: p.Now,
	}
	r.s.accounts[a.ID] = a
	return &a, true, nil
}

func (r *memAccounts) UpdateLastLogin(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok {
		a.LastLogin = &now
		r.s.accounts[id] = a
	}
	return nil
}

func (r *memAccounts) CompleteSetup(_ context.Context, id string, now time.Time) (*model.PortalAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || a.Status != model.PortalAccountPendingSetup {
		return nil, nil
	}
	a.Status = model.PortalAccountActive
	a.PasswordSetupAt = &now
	a.UpdatedAt = now
	r.s.accounts[id] = a
	return &a, nil
}

func (r *memAccounts) Deactivate(_ context.Context, id string, now time.Time) (*model.PortalAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || a.Status == model.PortalAccountDeactivated {
		return nil, nil
	}
	a.Status = model.PortalAccountDeactivated
	a.UpdatedAt = now
	r.s.accounts[id] = a
	for hash, sess := range r.s.sessions {
		if sess.PortalAccountID == id && sess.RevokedAt == nil {
			sess.RevokedAt = &now
			r.s.sessions[hash] = sess
		}
	}
	return &a, nil
}

type memSessions struct{ s *memStore }

func (r *memSessions) Create(_ context.Context, p model.CreateSessionParams) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess := model.Session{
		ID: p.ID, PortalAccountID: p.PortalAccountID, TokenHash: p.TokenHash, Kind: p.Kind,
		IPAddress: p.IPAddress, UserAgent: p.UserAgent, ExpiresAt: p.ExpiresAt, CreatedAt: p.Now,
	}
	r.s.sessions[p.TokenHash] = sess
	return &sess, nil
}

func (r *memSessions) FindValidByTokenHash(_ context.Context, hash string, now time.Time) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[hash]
	if !ok || sess.RevokedAt != nil || sess.ConsumedAt != nil || !sess.ExpiresAt.After(now) {
		return nil, nil
	}
	return &sess, nil
}

func (r *memSessions) Consume(_ context.Context, hash string, now time.Time) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[hash]
	if !ok || sess.Kind != model.SessionKindMagicLink || sess.RevokedAt != nil ||
		sess.ConsumedAt != nil || !sess.ExpiresAt.After(now) {
		return nil, nil
	}
	sess.ConsumedAt = &now
	sess.LastAccessed = &now
	r.s.sessions[hash] = sess
	return &sess, nil
}

func (r *memSessions) Touch(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.touchErr != nil {
		return r.s.touchErr
	}
	for hash, sess := range r.s.sessions {
		if sess.ID == id {
			sess.LastAccessed = &now
			r.s.sessions[hash] = sess
		}
	}
	return nil
}

func (r *memSessions) Revoke(_ context.Context, hash string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[hash]
	if !ok || sess.RevokedAt != nil {
		return false, nil
	}
	sess.RevokedAt = &now
	r.s.sessions[hash] = sess
	return true, nil
}

func (r *memSessions) RevokeAllForAccount(_ context.Context, accountID string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for hash, sess := range r.s.sessions {
		if sess.PortalAccountID == accountID && sess.RevokedAt == nil {
			sess.RevokedAt = &now
			r.s.sessions[hash] = sess
			n++
		}
	}
	return n, nil
}

func (r *memSessions) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for hash, sess := range r.s.sessions {
		stale := sess.ExpiresAt.Before(cutoff) ||
			(sess.RevokedAt != nil && sess.RevokedAt.Before(cutoff)) ||
			(sess.ConsumedAt != nil && sess.ConsumedAt.Before(cutoff))
		if stale {
			delete(r.s.sessions, hash)
			n++
		}
	}
	return n, nil
}

type memActivity struct{ s *memStore }

func (r *memActivity) Append(_ context.Context, entry model.ActivityLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.activityErr != nil {
		return r.s.activityErr
	}
	r.s.activity = append(r.s.activity, entry)
	return nil
}
