// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service
// and internal/authclient.
package ports

import (
	"context"
	"time"

	domainauth "github.com/target/marketgate/internal/domain/auth"
)

// CreateUserInput carries the fields for a new account.
type CreateUserInput struct {
	Email           string
	PasswordHash    string
	Role            domainauth.Role
	BusinessID      string
	FirstName       string
	LastName        string
	AvatarURL       string
	ProviderSubject string
}

// UserRepository persists marketplace accounts.
// Lookups return an internal/errors NotFound error when no row matches.
type UserRepository interface {
	Create(ctx context.Context, in CreateUserInput) (*domainauth.User, error)
	GetByID(ctx context.Context, id string) (*domainauth.User, error)
	GetByEmail(ctx context.Context, email string) (*domainauth.User, error)
	GetByProviderSubject(ctx context.Context, subject string) (*domainauth.User, error)
	LinkProviderSubject(ctx context.Context, id, subject string) error
}

// RevocationStore remembers revoked token ids until they would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// CredentialVerifier verifies a token issued by the external identity provider.
type CredentialVerifier interface {
	Verify(ctx context.Context, rawToken string) (domainauth.Identity, error)
}

// RoleMapper derives an application role from provider claims.
type RoleMapper interface {
	Map(claims map[string]any) domainauth.Role
}

// ProfileResolver turns a provider credential into the application user.
type ProfileResolver interface {
	Resolve(ctx context.Context, providerToken string) (domainauth.AppUser, error)
}

// IdentityProvider is the client-side sign-in SDK the auth context drives.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domainauth.ProviderUser, error)
	SignInWithGoogle(ctx context.Context) (*domainauth.ProviderUser, error)
	SignOut(ctx context.Context) error
	// Token returns the current provider credential, refreshing it when force is set.
	Token(ctx context.Context, force bool) (string, error)
	// Subscribe registers fn for auth-state changes. fn receives nil on sign-out.
	// The current state is delivered once right after subscribing.
	Subscribe(fn func(*domainauth.ProviderUser)) (unsubscribe func())
}

// SessionSyncer exchanges a provider credential for a session cookie.
type SessionSyncer interface {
	Sync(ctx context.Context, providerToken string) error
}
