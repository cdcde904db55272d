package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/marketgate/config"
	"github.com/target/marketgate/internal/adapters/authroles"
	"github.com/target/marketgate/internal/adapters/devauth"
	"github.com/target/marketgate/internal/adapters/oidc"
	redisadapter "github.com/target/marketgate/internal/adapters/redis"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/ports"
	"github.com/target/marketgate/internal/service"
	"github.com/target/marketgate/internal/token"
)

// AuthConfig contains the dependencies of the auth service.
type AuthConfig struct {
	Auth    config.AuthConfig
	Session config.SessionConfig
	// Users is required.
	Users ports.UserRepository
	// RedisClient is optional; without it tokens cannot be revoked.
	RedisClient      redis.UniversalClient
	RevocationPrefix string
	IsDev            bool
	Logger           *slog.Logger
}

// BuildSigner creates the session token signer. Sync-minted tokens carry their
// own issuer, which the signer also accepts.
func BuildSigner(auth config.AuthConfig) (*token.Signer, error) {
	return token.NewSigner(token.SignerOptions{
		Secret:          []byte(auth.TokenSecret),
		Issuer:          auth.TokenIssuer,
		AcceptedIssuers: []string{service.SyncIssuer},
	})
}

// BuildAuthService wires the auth service for the configured mode.
func BuildAuthService(ctx context.Context, cfg AuthConfig) (*service.AuthService, error) {
	if cfg.Users == nil {
		return nil, errors.New("auth: user repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	signer, err := BuildSigner(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	roles, err := BuildRoleMapper(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	opts := service.AuthServiceOptions{
		Users:        cfg.Users,
		Signer:       signer,
		Verifier:     verifier,
		Roles:        roles,
		LoginTTL:     cfg.Session.LoginTTL,
		SyncTTL:      cfg.Session.SyncTTL,
		PasswordCost: cfg.Auth.PasswordCost,
		Logger:       logger,
	}
	if cfg.RedisClient != nil {
		opts.Revocations = redisadapter.NewRevocationStoreWithPrefix(cfg.RedisClient, cfg.RevocationPrefix)
	} else {
		logger.WarnContext(ctx, "token revocation disabled: redis client not configured")
	}

	logger.InfoContext(ctx, "auth service configured",
		"mode", cfg.Auth.Mode,
		"provider_sync", verifier != nil,
		"revocation", opts.Revocations != nil,
	)
	return service.NewAuthService(opts), nil
}

// BuildRoleMapper builds the claim-to-role mapper used when provider sync
// provisions an account. Mock mode reads the dev token's role claim unless an
// expression is configured.
func BuildRoleMapper(auth config.AuthConfig) (*authroles.ClaimMapper, error) {
	rules, err := authroles.ParseRules(auth.RoleRules)
	if err != nil {
		return nil, err
	}
	expr := auth.RoleExpression
	if expr == "" && auth.Mode == config.AuthModeMock {
		expr = "role"
	}
	return authroles.NewClaimMapper(authroles.Config{
		RoleExpression: expr,
		Rules:          rules,
		Default:        domainauth.Role(auth.DefaultRole),
	})
}

// buildVerifier returns nil in backend mode, which leaves /auth/sync disabled.
//
//nolint:ireturn // the verifier kind is chosen at runtime.
func buildVerifier(ctx context.Context, cfg AuthConfig) (ports.CredentialVerifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeOAuth:
		return oidc.NewVerifier(ctx, oidc.VerifierConfig{
			ClientID:     cfg.Auth.OAuth.ClientID,
			DiscoveryURL: cfg.Auth.OAuth.DiscoveryURL,
		})
	case config.AuthModeMock:
		if !cfg.IsDev {
			return nil, errors.New("mock auth requires development mode")
		}
		return devauth.NewVerifier(devauth.VerifierConfig{DefaultEmail: cfg.Auth.DevAuth.Email})
	default:
		return nil, nil
	}
}
