package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	domainauth "github.com/target/marketgate/internal/domain/auth"
)

const minSecretLen = 32

// ErrInvalidToken is returned by Verify for any token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid session token")

// SignerOptions groups configuration for Signer.
type SignerOptions struct {
	Secret []byte
	// Issuer is stamped on minted tokens unless MintInput overrides it.
	Issuer string
	// AcceptedIssuers lists issuers Verify trusts. Issuer is always accepted.
	AcceptedIssuers []string
	Now             func() time.Time
}

// Signer mints and verifies HS256 session tokens.
type Signer struct {
	secret   []byte
	issuer   string
	accepted map[string]bool
	now      func() time.Time
}

// sessionClaims is the wire shape of a session token payload.
type sessionClaims struct {
	Role       string `json:"role"`
	Email      string `json:"email,omitempty"`
	BusinessID string `json:"businessId,omitempty"`
	jwt.RegisteredClaims
}

// NewSigner validates options and returns a Signer.
func NewSigner(opts SignerOptions) (*Signer, error) {
	if len(opts.Secret) < minSecretLen {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLen)
	}
	if strings.TrimSpace(opts.Issuer) == "" {
		return nil, errors.New("token issuer is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	accepted := map[string]bool{opts.Issuer: true}
	for _, iss := range opts.AcceptedIssuers {
		if iss = strings.TrimSpace(iss); iss != "" {
			accepted[iss] = true
		}
	}
	return &Signer{
		secret:   append([]byte(nil), opts.Secret...),
		issuer:   opts.Issuer,
		accepted: accepted,
		now:      now,
	}, nil
}

// MintInput describes the subject of a new token.
type MintInput struct {
	Subject    string
	Email      string
	Role       domainauth.Role
	BusinessID string
	Issuer     string // optional override; must be an accepted issuer
}

// Mint signs a new token valid for ttl and returns it with its payload.
func (s *Signer) Mint(in MintInput, ttl time.Duration) (string, domainauth.Payload, error) {
	if !in.Role.Valid() {
		return "", domainauth.Payload{}, fmt.Errorf("mint token: unknown role %q", in.Role)
	}
	if ttl <= 0 {
		return "", domainauth.Payload{}, errors.New("mint token: ttl must be positive")
	}
	issuer := s.issuer
	if in.Issuer != "" {
		if !s.accepted[in.Issuer] {
			return "", domainauth.Payload{}, fmt.Errorf("mint token: issuer %q not accepted", in.Issuer)
		}
		issuer = in.Issuer
	}

	now := s.now().UTC().Truncate(time.Second)
	claims := sessionClaims{
		Role:       string(in.Role),
		Email:      in.Email,
		BusinessID: in.BusinessID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   in.Subject,
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", domainauth.Payload{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.payload(), nil
}

// Verify checks signature, expiry, issuer and role, then returns the payload.
func (s *Signer) Verify(raw string) (domainauth.Payload, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return domainauth.Payload{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !s.accepted[claims.Issuer] {
		return domainauth.Payload{}, fmt.Errorf("%w: issuer %q not accepted", ErrInvalidToken, claims.Issuer)
	}
	if !domainauth.Role(claims.Role).Valid() {
		return domainauth.Payload{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims.payload(), nil
}

func (c sessionClaims) payload() domainauth.Payload {
	p := domainauth.Payload{
		Subject:    c.Subject,
		Email:      c.Email,
		Role:       domainauth.Role(c.Role),
		BusinessID: c.BusinessID,
		Issuer:     c.Issuer,
		TokenID:    c.ID,
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.UTC()
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.UTC()
	}
	return p
}
