package auth

import (
	"fmt"
	"net/http"
)

// Decode failure reasons reported by TokenDecodeError.
const (
	DecodeReasonEmpty        = "empty"
	DecodeReasonSegmentCount = "segment_count"
	DecodeReasonBase64       = "base64"
	DecodeReasonJSON         = "json"
	DecodeReasonMissingRole  = "missing_role"
	DecodeReasonUnknownRole  = "unknown_role"
)

// TokenDecodeError reports a malformed or unparseable session token.
// It only affects the current request's authorization outcome.
type TokenDecodeError struct {
	Reason string
	Err    error
}

func (e *TokenDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode token: %s: %v", e.Reason, e.Err)
	}
	return "decode token: " + e.Reason
}

func (e *TokenDecodeError) Unwrap() error { return e.Err }

// ProfileFetchError reports a failed lookup of the application profile.
// Status is zero when the request never produced an HTTP response.
type ProfileFetchError struct {
	Status  int
	Message string
	Err     error
}

func (e *ProfileFetchError) Error() string {
	msg := e.Message
	if msg == "" && e.Status > 0 {
		msg = http.StatusText(e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch profile (status %d): %s: %v", e.Status, msg, e.Err)
	}
	return fmt.Sprintf("fetch profile (status %d): %s", e.Status, msg)
}

func (e *ProfileFetchError) Unwrap() error { return e.Err }

// AuthProviderError reports a failed sign-in or sign-out with the identity provider.
type AuthProviderError struct {
	Op  string
	Err error
}

func (e *AuthProviderError) Error() string {
	return fmt.Sprintf("auth provider %s: %v", e.Op, e.Err)
}

func (e *AuthProviderError) Unwrap() error { return e.Err }

// UnauthorizedAccess reports an authenticated caller whose role may not enter an area.
type UnauthorizedAccess struct {
	Role Role
	Area Area
}

func (e *UnauthorizedAccess) Error() string {
	return fmt.Sprintf("role %q may not access area %q", e.Role, e.Area)
}
