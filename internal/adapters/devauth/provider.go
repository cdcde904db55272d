package devauth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/target/marketgate/internal/adapters/authevents"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/ports"
)

var _ ports.IdentityProvider = (*Provider)(nil)

// ErrBadCredentials is returned by SignInWithPassword for unknown accounts.
var ErrBadCredentials = errors.New("dev auth: bad credentials")

// Account is a dev sign-in.
type Account struct {
	Email    string
	Password string
	Role     domainauth.Role
}

// ProviderConfig controls the in-memory identity provider.
type ProviderConfig struct {
	Accounts []Account
	// GoogleAccount is returned by SignInWithGoogle. Empty disables it.
	GoogleAccount Account
}

// Provider is an in-memory ports.IdentityProvider whose credentials are
// accepted by Verifier.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]Account
	google   Account
	signedIn *Account
	events   *authevents.Broadcaster
}

// NewProvider constructs a dev identity provider.
func NewProvider(cfg ProviderConfig) *Provider {
	accounts := make(map[string]Account, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		a.Email = strings.ToLower(strings.TrimSpace(a.Email))
		accounts[a.Email] = a
	}
	return &Provider{accounts: accounts, google: cfg.GoogleAccount, events: authevents.New()}
}

func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (*domainauth.ProviderUser, error) {
	p.mu.Lock()
	a, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || a.Password != password {
		p.mu.Unlock()
		return nil, ErrBadCredentials
	}
	return p.signIn(a), nil
}

func (p *Provider) SignInWithGoogle(_ context.Context) (*domainauth.ProviderUser, error) {
	p.mu.Lock()
	if p.google.Email == "" {
		p.mu.Unlock()
		return nil, errors.New("dev auth: google sign-in is not configured")
	}
	return p.signIn(p.google), nil
}

// signIn must be called with p.mu held and releases it.
func (p *Provider) signIn(a Account) *domainauth.ProviderUser {
	p.signedIn = &a
	p.mu.Unlock()
	u := providerUser(a)
	p.events.Publish(u)
	return u
}

func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.signedIn = nil
	p.mu.Unlock()
	p.events.Publish(nil)
	return nil
}

func (p *Provider) Token(_ context.Context, _ bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signedIn == nil {
		return "", errors.New("dev auth: not signed in")
	}
	return TokenFor(p.signedIn.Email, p.signedIn.Role), nil
}

func (p *Provider) Subscribe(fn func(*domainauth.ProviderUser)) func() {
	return p.events.Subscribe(fn)
}

func providerUser(a Account) *domainauth.ProviderUser {
	local, _, _ := strings.Cut(a.Email, "@")
	return &domainauth.ProviderUser{UID: TokenPrefix + a.Email, Email: a.Email, DisplayName: local}
}
