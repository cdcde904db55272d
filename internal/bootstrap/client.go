package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/target/marketgate/config"
	"github.com/target/marketgate/internal/adapters/devauth"
	"github.com/target/marketgate/internal/adapters/oauthclient"
	"github.com/target/marketgate/internal/adapters/profileapi"
	"github.com/target/marketgate/internal/authclient"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/observability/metrics"
	"github.com/target/marketgate/internal/ports"
	"golang.org/x/net/publicsuffix"
)

// ClientConfig contains dependencies for a client-side auth context.
type ClientConfig struct {
	Auth   config.AuthConfig
	Client config.ClientConfig
	IsDev  bool
	// CodeFetcher completes browser sign-in in oauth mode.
	CodeFetcher oauthclient.CodeFetcher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// BuildAuthClient wires an unstarted auth context against the configured
// identity provider and profile API. The returned HTTP client keeps the
// session cookie set by SyncSession.
func BuildAuthClient(ctx context.Context, cfg ClientConfig) (*authclient.Context, *http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, nil, fmt.Errorf("cookie jar: %w", err)
	}
	hc := &http.Client{Timeout: cfg.Client.Timeout, Jar: jar}

	provider, err := BuildIdentityProvider(ctx, cfg, hc)
	if err != nil {
		return nil, nil, err
	}
	resolver, err := profileapi.New(profileapi.Options{
		BaseURL:    cfg.Client.ProfileBaseURL,
		Path:       cfg.Client.ProfilePath,
		HTTPClient: hc,
	})
	if err != nil {
		return nil, nil, err
	}
	syncer, err := profileapi.NewSyncer(profileapi.SyncerOptions{
		BaseURL:    cfg.Client.ProfileBaseURL,
		Path:       cfg.Client.SyncPath,
		HTTPClient: hc,
	})
	if err != nil {
		return nil, nil, err
	}

	ac, err := authclient.New(authclient.Options{
		Provider:       provider,
		Resolver:       resolver,
		Syncer:         syncer,
		Logger:         cfg.Logger,
		OnResolveError: cfg.Metrics.ProfileFailure,
	})
	if err != nil {
		return nil, nil, err
	}
	return ac, hc, nil
}

// BuildIdentityProvider returns the sign-in SDK for the configured auth mode.
//
//nolint:ireturn // the provider kind is chosen at runtime.
func BuildIdentityProvider(ctx context.Context, cfg ClientConfig, hc *http.Client) (ports.IdentityProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if !cfg.IsDev {
			return nil, errors.New("mock auth requires development mode")
		}
		dev := devauth.Account{
			Email:    cfg.Auth.DevAuth.Email,
			Password: cfg.Auth.DevAuth.Password,
			Role:     domainauth.Role(strings.ToUpper(cfg.Auth.DevAuth.Role)),
		}
		return devauth.NewProvider(devauth.ProviderConfig{
			Accounts:      []devauth.Account{dev},
			GoogleAccount: dev,
		}), nil

	case config.AuthModeOAuth:
		endpoint, err := oauthEndpoint(ctx, cfg.Auth.OAuth, hc)
		if err != nil {
			return nil, err
		}
		return oauthclient.NewProvider(oauthclient.Config{
			ClientID:     cfg.Auth.OAuth.ClientID,
			ClientSecret: cfg.Auth.OAuth.ClientSecret,
			AuthURL:      endpoint.AuthURL,
			TokenURL:     endpoint.TokenURL,
			RedirectURL:  cfg.Auth.OAuth.RedirectURL,
			Scopes:       cfg.Auth.OAuth.Scopes(),
			RevokeURL:    cfg.Auth.OAuth.RevokeURL,
			HTTPClient:   hc,
			CodeFetcher:  cfg.CodeFetcher,
		})

	default:
		return nil, fmt.Errorf("auth mode %q has no client identity provider", cfg.Auth.Mode)
	}
}

type oauthEndpoints struct {
	AuthURL  string
	TokenURL string
}

// oauthEndpoint prefers explicit URLs and falls back to OIDC discovery.
func oauthEndpoint(ctx context.Context, o config.OAuthConfig, hc *http.Client) (oauthEndpoints, error) {
	if o.TokenURL != "" {
		return oauthEndpoints{AuthURL: o.AuthURL, TokenURL: o.TokenURL}, nil
	}
	if o.DiscoveryURL == "" {
		return oauthEndpoints{}, errors.New("OAUTH_TOKEN_URL or OAUTH_DISCOVERY_URL is required")
	}
	issuer := strings.TrimSuffix(strings.TrimRight(o.DiscoveryURL, "/"), "/.well-known/openid-configuration")
	p, err := gooidc.NewProvider(gooidc.ClientContext(ctx, hc), issuer)
	if err != nil {
		return oauthEndpoints{}, fmt.Errorf("oidc discovery: %w", err)
	}
	ep := p.Endpoint()
	return oauthEndpoints{AuthURL: ep.AuthURL, TokenURL: ep.TokenURL}, nil
}
