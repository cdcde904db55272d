// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	apperrors "github.com/target/marketgate/internal/errors"
	"github.com/target/marketgate/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider   = (*FakeIdentityProvider)(nil)
	_ ports.ProfileResolver    = ProfileResolverFunc(nil)
	_ ports.SessionSyncer      = SessionSyncerFunc(nil)
	_ ports.CredentialVerifier = (*StaticVerifier)(nil)
	_ ports.RoleMapper         = StaticRoleMapper{}
	_ ports.RevocationStore    = (*MemoryRevocationStore)(nil)
	_ ports.UserRepository     = (*MemoryUserRepository)(nil)
)

// FakeIdentityProvider is a scriptable identity provider. Events are only
// delivered when the test calls Emit, on the caller's goroutine.
type FakeIdentityProvider struct {
	SignInWithPasswordFunc func(ctx context.Context, email, password string) (*domainauth.ProviderUser, error)
	SignInWithGoogleFunc   func(ctx context.Context) (*domainauth.ProviderUser, error)
	SignOutFunc            func(ctx context.Context) error
	TokenFunc              func(ctx context.Context, force bool) (string, error)

	mu        sync.Mutex
	listeners map[int]func(*domainauth.ProviderUser)
	nextID    int
	signOuts  int
}

func (f *FakeIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.ProviderUser, error) {
	if f.SignInWithPasswordFunc != nil {
		return f.SignInWithPasswordFunc(ctx, email, password)
	}
	return &domainauth.ProviderUser{UID: "uid-" + email, Email: email}, nil
}

func (f *FakeIdentityProvider) SignInWithGoogle(ctx context.Context) (*domainauth.ProviderUser, error) {
	if f.SignInWithGoogleFunc != nil {
		return f.SignInWithGoogleFunc(ctx)
	}
	return &domainauth.ProviderUser{UID: "uid-google", Email: "google@example.com"}, nil
}

func (f *FakeIdentityProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	if f.SignOutFunc != nil {
		return f.SignOutFunc(ctx)
	}
	return nil
}

func (f *FakeIdentityProvider) Token(ctx context.Context, force bool) (string, error) {
	if f.TokenFunc != nil {
		return f.TokenFunc(ctx, force)
	}
	return "provider-token", nil
}

func (f *FakeIdentityProvider) Subscribe(fn func(*domainauth.ProviderUser)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listeners == nil {
		f.listeners = make(map[int]func(*domainauth.ProviderUser))
	}
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

// Emit delivers u to every current subscriber synchronously.
func (f *FakeIdentityProvider) Emit(u *domainauth.ProviderUser) {
	f.mu.Lock()
	fns := make([]func(*domainauth.ProviderUser), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

// Subscribers returns the number of active subscriptions.
func (f *FakeIdentityProvider) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// SignOuts returns how many times SignOut was called.
func (f *FakeIdentityProvider) SignOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOuts
}

// ProfileResolverFunc adapts a function to ports.ProfileResolver.
type ProfileResolverFunc func(ctx context.Context, providerToken string) (domainauth.AppUser, error)

func (f ProfileResolverFunc) Resolve(ctx context.Context, providerToken string) (domainauth.AppUser, error) {
	return f(ctx, providerToken)
}

// SessionSyncerFunc adapts a function to ports.SessionSyncer.
type SessionSyncerFunc func(ctx context.Context, providerToken string) error

func (f SessionSyncerFunc) Sync(ctx context.Context, providerToken string) error {
	return f(ctx, providerToken)
}

// StaticVerifier maps known raw tokens to identities.
type StaticVerifier struct {
	Identities map[string]domainauth.Identity
	Err        error
}

func (v *StaticVerifier) Verify(_ context.Context, rawToken string) (domainauth.Identity, error) {
	if v.Err != nil {
		return domainauth.Identity{}, v.Err
	}
	id, ok := v.Identities[rawToken]
	if !ok {
		return domainauth.Identity{}, apperrors.Unauthenticated("unknown provider token")
	}
	return id, nil
}

// StaticRoleMapper always returns Role, or CUSTOMER when empty.
type StaticRoleMapper struct {
	Role domainauth.Role
}

func (m StaticRoleMapper) Map(map[string]any) domainauth.Role {
	if m.Role == "" {
		return domainauth.RoleCustomer
	}
	return m.Role
}

// MemoryRevocationStore is an in-memory revocation store for unit tests.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewMemoryRevocationStore creates an empty store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (m *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = until
	return nil
}

func (m *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[tokenID]
	return ok && time.Now().Before(until), nil
}

// MemoryUserRepository is an in-memory user repository with the same error
// semantics as the Postgres one.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*domainauth.User
}

// NewMemoryUserRepository creates a repository seeded with users.
func NewMemoryUserRepository(users ...domainauth.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]*domainauth.User)}
	for _, u := range users {
		u := u
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		r.users[u.ID] = &u
	}
	return r
}

func (r *MemoryUserRepository) Create(_ context.Context, in ports.CreateUserInput) (*domainauth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	for _, u := range r.users {
		if u.Email == email {
			return nil, apperrors.Conflict("email", "email taken")
		}
		if in.ProviderSubject != "" && u.ProviderSubject == in.ProviderSubject {
			return nil, apperrors.Conflict("provider_subject", "subject taken")
		}
	}
	now := time.Now().UTC()
	u := &domainauth.User{
		ID:              uuid.NewString(),
		Email:           email,
		PasswordHash:    in.PasswordHash,
		Role:            in.Role,
		BusinessID:      in.BusinessID,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		AvatarURL:       in.AvatarURL,
		ProviderSubject: in.ProviderSubject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domainauth.User, error) {
	return r.find(func(u *domainauth.User) bool { return u.ID == id })
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domainauth.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u *domainauth.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) GetByProviderSubject(_ context.Context, subject string) (*domainauth.User, error) {
	if subject == "" {
		return nil, apperrors.NotFound("user not found")
	}
	return r.find(func(u *domainauth.User) bool { return u.ProviderSubject == subject })
}

func (r *MemoryUserRepository) LinkProviderSubject(_ context.Context, id, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	u.ProviderSubject = subject
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryUserRepository) find(match func(*domainauth.User) bool) (*domainauth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}
