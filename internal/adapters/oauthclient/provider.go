// Package oauthclient is the Go client-side identity provider built on OAuth2.
// Apps embed it behind the auth context to sign users in and keep their
// provider credential fresh.
package oauthclient

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/target/marketgate/internal/adapters/authevents"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/ports"
	"golang.org/x/oauth2"
)

var _ ports.IdentityProvider = (*Provider)(nil)

// ErrNotSignedIn is returned by Token when there is no credential.
var ErrNotSignedIn = errors.New("not signed in")

// CodeFetcher completes the interactive part of an authorization code flow:
// it sends the user to authURL and returns the code delivered for state.
type CodeFetcher interface {
	FetchCode(ctx context.Context, authURL, state string) (string, error)
}

// CodeFetcherFunc adapts a function to CodeFetcher.
type CodeFetcherFunc func(ctx context.Context, authURL, state string) (string, error)

func (f CodeFetcherFunc) FetchCode(ctx context.Context, authURL, state string) (string, error) {
	return f(ctx, authURL, state)
}

// Config holds configuration for the OAuth2 identity provider.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
	// RevokeURL is optional; when set SignOut revokes the refresh token there.
	RevokeURL   string
	HTTPClient  *http.Client // Optional, defaults to a client with a 30s timeout
	CodeFetcher CodeFetcher  // Required for SignInWithGoogle
}

// Provider implements ports.IdentityProvider.
type Provider struct {
	config     *oauth2.Config
	revokeURL  string
	httpClient *http.Client
	fetcher    CodeFetcher

	mu     sync.Mutex
	token  *oauth2.Token
	source oauth2.TokenSource

	events *authevents.Broadcaster
}

// NewProvider creates an OAuth2 identity provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.TokenURL == "" {
		return nil, errors.New("token URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL},
		},
		revokeURL:  cfg.RevokeURL,
		httpClient: httpClient,
		fetcher:    cfg.CodeFetcher,
		events:     authevents.New(),
	}, nil
}

// SignInWithPassword uses the resource owner password grant.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.ProviderUser, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}
	tok, err := p.config.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		return nil, fmt.Errorf("password grant: %w", err)
	}
	return p.storeToken(tok, email), nil
}

// SignInWithGoogle runs the authorization code flow with PKCE.
func (p *Provider) SignInWithGoogle(ctx context.Context) (*domainauth.ProviderUser, error) {
	if p.fetcher == nil {
		return nil, errors.New("code fetcher is not configured")
	}
	if p.config.Endpoint.AuthURL == "" {
		return nil, errors.New("auth URL is not configured")
	}

	state, err := randomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()
	authURL := p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	code, err := p.fetcher.FetchCode(ctx, authURL, state)
	if err != nil {
		return nil, fmt.Errorf("fetch authorization code: %w", err)
	}
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	tok, err := p.config.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code for token: %w", err)
	}
	return p.storeToken(tok, ""), nil
}

// SignOut drops the local credential and revokes it at the provider when a
// revoke URL is configured. The local state is cleared even if revocation fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	tok := p.token
	p.token, p.source = nil, nil
	p.mu.Unlock()
	p.events.Publish(nil)

	if tok == nil || p.revokeURL == "" {
		return nil
	}
	return p.revoke(ctx, tok)
}

// Token returns the provider credential, preferring the id_token. force
// refreshes it through the token endpoint first.
func (p *Provider) Token(ctx context.Context, force bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == nil {
		return "", ErrNotSignedIn
	}

	src := p.source
	if force {
		stale := *p.token
		stale.Expiry = time.Now().Add(-time.Minute)
		stale.AccessToken = ""
		src = p.config.TokenSource(p.clientContext(ctx), &stale)
	}
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	if tok != p.token {
		p.token = tok
		p.source = oauth2.ReuseTokenSource(tok, p.config.TokenSource(p.clientContext(context.Background()), tok))
	}
	return credential(tok), nil
}

// Subscribe registers fn for auth-state changes.
func (p *Provider) Subscribe(fn func(*domainauth.ProviderUser)) func() {
	return p.events.Subscribe(fn)
}

func (p *Provider) storeToken(tok *oauth2.Token, fallbackEmail string) *domainauth.ProviderUser {
	u := userFromToken(tok, fallbackEmail)
	p.mu.Lock()
	p.token = tok
	// Refreshes outlive the sign-in call, so the source must not hold its ctx.
	p.source = oauth2.ReuseTokenSource(tok, p.config.TokenSource(p.clientContext(context.Background()), tok))
	p.mu.Unlock()
	p.events.Publish(u)
	return u
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) revoke(ctx context.Context, tok *oauth2.Token) error {
	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}
	form := url.Values{"token": {value}, "client_id": {p.config.ClientID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revoke token: status %d", resp.StatusCode)
	}
	return nil
}

// credential prefers the id_token, which the backend verifies at /auth/sync.
func credential(tok *oauth2.Token) string {
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		return id
	}
	return tok.AccessToken
}

// userFromToken reads profile claims from the id_token without verifying it;
// the backend of record verifies the credential before trusting it.
func userFromToken(tok *oauth2.Token, fallbackEmail string) *domainauth.ProviderUser {
	u := &domainauth.ProviderUser{Email: fallbackEmail}
	raw, ok := tok.Extra("id_token").(string)
	if ok && raw != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err == nil {
			u.UID, _ = claims["sub"].(string)
			if email, _ := claims["email"].(string); email != "" {
				u.Email = email
			}
			u.DisplayName, _ = claims["name"].(string)
			u.PhotoURL, _ = claims["picture"].(string)
		}
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.UID == "" {
		u.UID = u.Email
	}
	return u
}

// randomString generates a cryptographically secure URL-safe random string of exact length.
func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
