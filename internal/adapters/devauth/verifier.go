// Package devauth provides config-driven identity adapters for local development.
// Nothing here talks to a real identity provider.
package devauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/ports"
)

// TokenPrefix starts every credential the dev adapters issue and accept.
const TokenPrefix = "dev:"

var _ ports.CredentialVerifier = (*Verifier)(nil)

// ErrInvalidDevToken is returned for credentials not in the dev format.
var ErrInvalidDevToken = errors.New("dev auth: invalid token")

// VerifierConfig controls the dev verifier.
type VerifierConfig struct {
	// DefaultEmail is used for the bare "dev:" token.
	DefaultEmail    string
	SessionDuration time.Duration // default 8h when zero
}

// Verifier implements ports.CredentialVerifier for tokens of the form
// "dev:<email>" or "dev:<email>:<ROLE>". The optional role is exposed as the
// "role" claim for the role mapper.
type Verifier struct {
	defaultEmail    string
	sessionDuration time.Duration
}

// NewVerifier constructs a dev verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.DefaultEmail == "" {
		return nil, errors.New("dev auth: DefaultEmail is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	return &Verifier{defaultEmail: strings.ToLower(cfg.DefaultEmail), sessionDuration: dur}, nil
}

// Verify parses a dev token into an identity.
func (v *Verifier) Verify(_ context.Context, rawToken string) (domainauth.Identity, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(rawToken), TokenPrefix)
	if !ok {
		return domainauth.Identity{}, ErrInvalidDevToken
	}
	email, role, _ := strings.Cut(rest, ":")
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = v.defaultEmail
	}
	if !strings.Contains(email, "@") {
		return domainauth.Identity{}, fmt.Errorf("%w: %q is not an email", ErrInvalidDevToken, email)
	}

	claims := map[string]any{"sub": TokenPrefix + email, "email": email}
	if role = strings.TrimSpace(role); role != "" {
		claims["role"] = role
	}
	local, _, _ := strings.Cut(email, "@")
	return domainauth.Identity{
		Subject:   TokenPrefix + email,
		Email:     email,
		FirstName: local,
		Claims:    claims,
		ExpiresAt: time.Now().Add(v.sessionDuration),
	}, nil
}

// TokenFor builds the dev credential for email and an optional role.
func TokenFor(email string, role domainauth.Role) string {
	if role == "" {
		return TokenPrefix + email
	}
	return TokenPrefix + email + ":" + string(role)
}
