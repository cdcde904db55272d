// Package oidc verifies identity provider ID tokens for session sync.
package oidc

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/ports"
	"golang.org/x/oauth2"
)

var _ ports.CredentialVerifier = (*Verifier)(nil)

// VerifierConfig holds configuration for the OIDC verifier.
type VerifierConfig struct {
	ClientID     string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a client with a 30s timeout
}

// Verifier implements ports.CredentialVerifier for OIDC ID tokens.
type Verifier struct {
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client
}

// NewVerifier discovers the provider's signing keys and returns a Verifier.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// Single discovery fetch; the remote key set refreshes itself on rotation.
	ctx = gooidc.ClientContext(ctx, httpClient)
	op, err := gooidc.NewProvider(ctx, issuerFromDiscoveryURL(cfg.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	return &Verifier{
		verifier:   op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		httpClient: httpClient,
	}, nil
}

// NewStaticVerifier verifies tokens against fixed public keys without discovery.
func NewStaticVerifier(issuer, clientID string, keys ...crypto.PublicKey) *Verifier {
	ks := &gooidc.StaticKeySet{PublicKeys: keys}
	return &Verifier{verifier: gooidc.NewVerifier(issuer, ks, &gooidc.Config{ClientID: clientID})}
}

// Verify checks the token's signature, issuer, audience and expiry and maps its claims.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return domainauth.Identity{}, errors.New("id token is required")
	}
	if v.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	}

	idTok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	raw := map[string]any{}
	if claimsErr := idTok.Claims(&raw); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	// Only an explicitly verified email may link to or provision an account.
	if claims.EmailVerified == nil || !*claims.EmailVerified {
		claims.Email = ""
	}

	id := mapIDTokenClaims(claims)
	id.Subject = idTok.Subject
	id.ExpiresAt = idTok.Expiry
	id.Claims = raw
	return id, nil
}

// idTokenClaims covers the standard OIDC profile claims.
type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// mapIDTokenClaims maps raw claims into an Identity using precedence rules.
func mapIDTokenClaims(c idTokenClaims) domainauth.Identity {
	first, last := c.GivenName, c.FamilyName
	if first == "" && last == "" && c.Name != "" {
		first, last, _ = strings.Cut(strings.TrimSpace(c.Name), " ")
		last = strings.TrimSpace(last)
	}
	return domainauth.Identity{
		Email:     strings.ToLower(strings.TrimSpace(c.Email)),
		FirstName: first,
		LastName:  last,
		AvatarURL: c.Picture,
	}
}

func issuerFromDiscoveryURL(u string) string {
	issuer := strings.TrimSuffix(u, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, ".well-known/openid-configuration")
}
