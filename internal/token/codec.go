// Package token reads and writes marketplace session tokens.
//
// Decode inspects a token's payload without checking its signature. It exists for
// fast edge routing decisions and is not a security control. Signer.Verify performs
// the full check and must be used wherever a token is trusted.
package token

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/marketgate/internal/domain/auth"
)

//nolint:gochecknoglobals // stateless parser reused for segment decoding
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode returns the payload of raw and requires a role claim.
// It never panics; every failure is a *domainauth.TokenDecodeError.
func Decode(raw string) (domainauth.Payload, error) {
	p, err := DecodePayload(raw)
	if err != nil {
		return domainauth.Payload{}, err
	}
	if p.Role == "" {
		return domainauth.Payload{}, &domainauth.TokenDecodeError{Reason: domainauth.DecodeReasonMissingRole}
	}
	return p, nil
}

// DecodePayload is Decode without the role requirement.
func DecodePayload(raw string) (p domainauth.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = domainauth.Payload{}
			err = &domainauth.TokenDecodeError{Reason: domainauth.DecodeReasonJSON, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domainauth.Payload{}, &domainauth.TokenDecodeError{Reason: domainauth.DecodeReasonEmpty}
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return domainauth.Payload{}, &domainauth.TokenDecodeError{
			Reason: domainauth.DecodeReasonSegmentCount,
			Err:    fmt.Errorf("got %d segments, want 3", len(parts)),
		}
	}

	body, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return domainauth.Payload{}, &domainauth.TokenDecodeError{Reason: domainauth.DecodeReasonBase64, Err: err}
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(body, &claims); err != nil {
		return domainauth.Payload{}, &domainauth.TokenDecodeError{Reason: domainauth.DecodeReasonJSON, Err: err}
	}

	return payloadFromClaims(claims)
}

func payloadFromClaims(claims jwt.MapClaims) (domainauth.Payload, error) {
	var p domainauth.Payload

	p.Subject = stringClaim(claims, "sub")
	if p.Subject == "" {
		p.Subject = stringClaim(claims, "id")
	}
	p.Email = stringClaim(claims, "email")
	p.BusinessID = stringClaim(claims, "businessId")
	p.Issuer = stringClaim(claims, "iss")
	p.TokenID = stringClaim(claims, "jti")

	if role, ok := claims["role"].(string); ok {
		p.Role = domainauth.Role(strings.TrimSpace(role))
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return domainauth.Payload{}, &domainauth.TokenDecodeError{Reason: domainauth.DecodeReasonJSON, Err: err}
	}
	if exp != nil {
		p.ExpiresAt = exp.UTC()
	}
	iat, err := claims.GetIssuedAt()
	if err != nil {
		return domainauth.Payload{}, &domainauth.TokenDecodeError{Reason: domainauth.DecodeReasonJSON, Err: err}
	}
	if iat != nil {
		p.IssuedAt = iat.UTC()
	}

	return p, nil
}

// stringClaim reads a string-ish claim. Numeric ids are formatted without exponent.
func stringClaim(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
