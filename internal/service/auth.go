package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/marketgate/internal/domain/auth"
	apperrors "github.com/target/marketgate/internal/errors"
	"github.com/target/marketgate/internal/ports"
	"github.com/target/marketgate/internal/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SyncIssuer is stamped on tokens minted from a provider credential.
	SyncIssuer = "marketgate-sync"

	DefaultLoginTTL = 7 * 24 * time.Hour
	DefaultSyncTTL  = time.Hour

	minPasswordLen = 8
)

var (
	// ErrInvalidCredentials is returned for an unknown email and a wrong password alike.
	ErrInvalidCredentials = apperrors.Unauthenticated("invalid email or password")
	// ErrInvalidSession is returned by Me for tokens that fail verification.
	ErrInvalidSession = apperrors.Unauthenticated("invalid or expired session")
	// ErrSessionRevoked is returned by Me for tokens revoked at logout.
	ErrSessionRevoked = apperrors.Unauthenticated("session has been revoked")
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Users  ports.UserRepository // Required
	Signer *token.Signer        // Required

	Revocations ports.RevocationStore    // Optional; logout only clears the cookie without it
	Verifier    ports.CredentialVerifier // Optional; Sync is disabled without it
	Roles       ports.RoleMapper         // Optional; provisioned users are CUSTOMER without it

	LoginTTL     time.Duration
	SyncTTL      time.Duration
	PasswordCost int // bcrypt cost, default bcrypt.DefaultCost
	Logger       *slog.Logger
}

// AuthService is the backend of record for marketplace sessions. It checks
// credentials, mints session tokens and resolves them back into users.
type AuthService struct {
	users       ports.UserRepository
	signer      *token.Signer
	revocations ports.RevocationStore
	verifier    ports.CredentialVerifier
	roles       ports.RoleMapper

	loginTTL time.Duration
	syncTTL  time.Duration
	cost     int
	logger   *slog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService constructs a new AuthService. It panics if a required dependency is nil.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Users == nil {
		panic("service: AuthService requires a UserRepository")
	}
	if opts.Signer == nil {
		panic("service: AuthService requires a token Signer")
	}
	s := &AuthService{
		users:       opts.Users,
		signer:      opts.Signer,
		revocations: opts.Revocations,
		verifier:    opts.Verifier,
		roles:       opts.Roles,
		loginTTL:    opts.LoginTTL,
		syncTTL:     opts.SyncTTL,
		cost:        opts.PasswordCost,
		logger:      opts.Logger,
	}
	if s.loginTTL <= 0 {
		s.loginTTL = DefaultLoginTTL
	}
	if s.syncTTL <= 0 {
		s.syncTTL = DefaultSyncTTL
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "auth_service")
	return s
}

// LoginTTL returns the lifetime of tokens minted by Login.
func (s *AuthService) LoginTTL() time.Duration { return s.loginTTL }

// SyncTTL returns the lifetime of tokens minted by Sync.
func (s *AuthService) SyncTTL() time.Duration { return s.syncTTL }

// SessionResult is a freshly minted session token and where its holder lands.
type SessionResult struct {
	Token     string
	Payload   domainauth.Payload
	Home      string
	ExpiresIn time.Duration
}

// Login checks an email and password and mints a long-lived session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*SessionResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, fmt.Errorf("load user: %w", err)
		}
		// Spend the same bcrypt time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		s.logger.InfoContext(ctx, "login rejected", "reason", "unknown_email")
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		s.logger.InfoContext(ctx, "login rejected", "reason", "no_password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.InfoContext(ctx, "login rejected", "reason", "bad_password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	res, err := s.mint(user, "", s.loginTTL)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "login succeeded", "user_id", user.ID, "role", user.Role)
	return res, nil
}

// SyncResult is the outcome of exchanging a provider credential.
type SyncResult struct {
	SessionResult
	// Provisioned is set when the account was created by this call.
	Provisioned bool
}

// Sync verifies a provider credential and mints a short-lived session token for
// the matching account, creating a CUSTOMER-level account on first sight.
func (s *AuthService) Sync(ctx context.Context, providerToken string) (*SyncResult, error) {
	if s.verifier == nil {
		return nil, apperrors.Internal("provider sync is not configured")
	}
	if strings.TrimSpace(providerToken) == "" {
		return nil, apperrors.ValidationField("token", "provider token is required")
	}

	id, err := s.verifier.Verify(ctx, providerToken)
	if err != nil {
		s.logger.InfoContext(ctx, "provider token rejected", "error", err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnauthenticated, "invalid provider token")
	}

	user, provisioned, err := s.userForIdentity(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := s.mint(user, SyncIssuer, s.syncTTL)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "session synced",
		"user_id", user.ID, "role", user.Role, "provisioned", provisioned)
	return &SyncResult{SessionResult: *res, Provisioned: provisioned}, nil
}

func (s *AuthService) userForIdentity(ctx context.Context, id domainauth.Identity) (*domainauth.User, bool, error) {
	if id.Subject == "" {
		return nil, false, apperrors.Unauthenticated("provider token has no subject")
	}

	user, err := s.users.GetByProviderSubject(ctx, id.Subject)
	if err == nil {
		return user, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, false, fmt.Errorf("load user by subject: %w", err)
	}

	email := normalizeEmail(id.Email)
	if email != "" {
		user, err = s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if linkErr := s.users.LinkProviderSubject(ctx, user.ID, id.Subject); linkErr != nil {
				return nil, false, fmt.Errorf("link provider subject: %w", linkErr)
			}
			user.ProviderSubject = id.Subject
			return user, false, nil
		case !apperrors.IsNotFound(err):
			return nil, false, fmt.Errorf("load user by email: %w", err)
		}
	}
	if email == "" {
		return nil, false, apperrors.Unauthenticated("provider token has no verified email")
	}

	role := domainauth.RoleCustomer
	if s.roles != nil {
		role = s.roles.Map(id.Claims)
	}
	user, err = s.users.Create(ctx, ports.CreateUserInput{
		Email:           email,
		Role:            role,
		FirstName:       id.FirstName,
		LastName:        id.LastName,
		AvatarURL:       id.AvatarURL,
		ProviderSubject: id.Subject,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			// Lost a race with a concurrent sync for the same subject.
			if again, getErr := s.users.GetByProviderSubject(ctx, id.Subject); getErr == nil {
				return again, false, nil
			}
		}
		return nil, false, fmt.Errorf("provision user: %w", err)
	}
	return user, true, nil
}

// Me loads the account behind raw, which is either a session token or, when
// provider sync is configured, a provider credential. A provider credential
// for an unknown identity provisions the account as Sync does.
func (s *AuthService) Me(ctx context.Context, raw string) (domainauth.AppUser, error) {
	p, err := s.signer.Verify(raw)
	if err != nil {
		if s.verifier == nil || strings.TrimSpace(raw) == "" {
			return domainauth.AppUser{}, ErrInvalidSession
		}
		return s.meFromProvider(ctx, raw)
	}
	if s.revocations != nil && p.TokenID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, p.TokenID)
		if err != nil {
			return domainauth.AppUser{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "check token revocation")
		}
		if revoked {
			return domainauth.AppUser{}, ErrSessionRevoked
		}
	}
	if p.Subject == "" {
		return domainauth.AppUser{}, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, p.Subject)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return domainauth.AppUser{}, apperrors.Unauthenticated("account no longer exists")
		}
		return domainauth.AppUser{}, fmt.Errorf("load user: %w", err)
	}
	return user.AppUser(), nil
}

func (s *AuthService) meFromProvider(ctx context.Context, raw string) (domainauth.AppUser, error) {
	id, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return domainauth.AppUser{}, ErrInvalidSession
	}
	user, _, err := s.userForIdentity(ctx, id)
	if err != nil {
		return domainauth.AppUser{}, err
	}
	return user.AppUser(), nil
}

// Logout revokes raw until it would have expired. Tokens that do not verify are
// ignored, so calling Logout twice, or with garbage, is not an error.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	if s.revocations == nil || strings.TrimSpace(raw) == "" {
		return nil
	}
	p, err := s.signer.Verify(raw)
	if err != nil || p.TokenID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		s.logger.WarnContext(ctx, "token revocation failed", "error", err, "user_id", p.Subject)
		return nil
	}
	s.logger.InfoContext(ctx, "session revoked", "user_id", p.Subject)
	return nil
}

// RegisterInput describes a new password account.
type RegisterInput struct {
	Email      string
	Password   string
	Role       domainauth.Role
	BusinessID string
	FirstName  string
	LastName   string
}

// Register creates a password account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domainauth.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, apperrors.ValidationField("email", "a valid email address is required")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperrors.ValidationField("password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	role, ok := domainauth.ParseRole(string(in.Role))
	if !ok {
		return nil, apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", in.Role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperrors.ValidationField("password", "password is too long")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, ports.CreateUserInput{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		BusinessID:   strings.TrimSpace(in.BusinessID),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *AuthService) mint(user *domainauth.User, issuer string, ttl time.Duration) (*SessionResult, error) {
	raw, p, err := s.signer.Mint(token.MintInput{
		Subject:    user.ID,
		Email:      user.Email,
		Role:       user.Role,
		BusinessID: user.BusinessID,
		Issuer:     issuer,
	}, ttl)
	if err != nil {
		return nil, fmt.Errorf("mint session token: %w", err)
	}
	return &SessionResult{
		Token:     raw,
		Payload:   p,
		Home:      domainauth.HomeForRole(user.Role),
		ExpiresIn: ttl,
	}, nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("marketgate-timing-equalizer"), s.cost)
	})
	return s.dummyHash
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
