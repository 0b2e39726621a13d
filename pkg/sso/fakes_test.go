package sso

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/authgate/pkg/auth"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memoryStore is an in-memory auth.UnitOfWorkFactory. Writes are staged per
// unit and applied on commit; inserting an existing email or profile fails
// with auth.ErrDuplicate like a unique index would.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account
	profiles map[uuid.UUID]*auth.Profile

	begins    int
	commits   int
	rollbacks int

	// beforeAccountAdd runs before each account insert is checked
	beforeAccountAdd func(email string)
	lookupErr        error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts: make(map[string]*auth.Account),
		profiles: make(map[uuid.UUID]*auth.Profile),
	}
}

func (s *memoryStore) Begin(context.Context) (auth.UnitOfWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	return &memoryUnit{
		store:    s,
		accounts: make(map[string]*auth.Account),
		added:    make(map[uuid.UUID]*auth.Profile),
		updated:  make(map[uuid.UUID]*auth.Profile),
	}, nil
}

func (s *memoryStore) account(email string) *auth.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[email]
}

func (s *memoryStore) profile(id uuid.UUID) *auth.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id]
}

// insertCommitted writes rows as if another transaction had committed them
func (s *memoryStore) insertCommitted(account *auth.Account, profile *auth.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Email] = account
	if profile != nil {
		s.profiles[profile.AccountID] = profile
	}
}

type memoryUnit struct {
	store    *memoryStore
	accounts map[string]*auth.Account
	added    map[uuid.UUID]*auth.Profile
	updated  map[uuid.UUID]*auth.Profile
	done     bool
}

func (u *memoryUnit) Users() auth.UserRepository       { return memoryUsers{u} }
func (u *memoryUnit) Profiles() auth.ProfileRepository { return memoryProfiles{u} }

func (u *memoryUnit) Commit(context.Context) error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, a := range u.accounts {
		s.accounts[email] = a
	}
	for id, p := range u.added {
		s.profiles[id] = p
	}
	for id, p := range u.updated {
		s.profiles[id] = p
	}
	s.commits++
	u.done = true
	return nil
}

func (u *memoryUnit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.store.mu.Lock()
	u.store.rollbacks++
	u.store.mu.Unlock()
	u.done = true
	return nil
}

type memoryUsers struct{ u *memoryUnit }

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	if err := r.u.store.lookupErr; err != nil {
		return nil, err
	}
	if a, ok := r.u.accounts[email]; ok {
		return a, nil
	}
	if a := r.u.store.account(email); a != nil {
		copied := *a
		return &copied, nil
	}
	return nil, auth.ErrNotFound
}

func (r memoryUsers) Add(_ context.Context, account *auth.Account) error {
	if hook := r.u.store.beforeAccountAdd; hook != nil {
		hook(account.Email)
	}
	if r.u.store.account(account.Email) != nil {
		return auth.ErrDuplicate
	}
	r.u.accounts[account.Email] = account
	return nil
}

type memoryProfiles struct{ u *memoryUnit }

func (r memoryProfiles) GetByUserID(_ context.Context, id uuid.UUID) (*auth.Profile, error) {
	if p, ok := r.u.added[id]; ok {
		return p, nil
	}
	if p := r.u.store.profile(id); p != nil {
		copied := *p
		return &copied, nil
	}
	return nil, auth.ErrNotFound
}

func (r memoryProfiles) Add(_ context.Context, profile *auth.Profile) error {
	if r.u.store.profile(profile.AccountID) != nil {
		return auth.ErrDuplicate
	}
	r.u.added[profile.AccountID] = profile
	return nil
}

func (r memoryProfiles) Update(_ context.Context, profile *auth.Profile) error {
	if r.u.store.profile(profile.AccountID) == nil {
		return auth.ErrNotFound
	}
	r.u.updated[profile.AccountID] = profile
	return nil
}

type fakeTokens struct {
	err    error
	issued []uuid.UUID
}

func (f *fakeTokens) CreateAccessToken(_ context.Context, accountID uuid.UUID) (*auth.AccessToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.issued = append(f.issued, accountID)
	return &auth.AccessToken{
		Value:     "token-" + accountID.String(),
		ExpiresAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

type fakeProvider struct {
	identity  *Identity
	err       error
	authErr   error
	exchanged []string
}

func (p *fakeProvider) Name() string { return ProviderGoogle }

func (p *fakeProvider) AuthorizeURL(state string) (string, error) {
	if p.authErr != nil {
		return "", p.authErr
	}
	return "https://idp.example.com/auth?state=" + url.QueryEscape(state), nil
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*Identity, error) {
	p.exchanged = append(p.exchanged, code)
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

var errStoreDown = errors.New("store down")
