// Package errors classifies errors into short, bounded labels for metrics and logs.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"

	domainauth "github.com/target/marketgate/internal/domain/auth"
	apperrors "github.com/target/marketgate/internal/errors"
)

// Classify returns a label describing err. Known error types get stable names
// so label cardinality stays bounded; anything else falls back to the
// innermost concrete type name in snake_case.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var decodeErr *domainauth.TokenDecodeError
	if goerrors.As(err, &decodeErr) {
		return "token_" + decodeErr.Reason
	}
	var fetchErr *domainauth.ProfileFetchError
	if goerrors.As(err, &fetchErr) {
		if fetchErr.Status == 0 {
			return "profile_transport"
		}
		return "profile_http"
	}
	var denied *domainauth.UnauthorizedAccess
	if goerrors.As(err, &denied) {
		return "unauthorized_access"
	}
	var providerErr *domainauth.AuthProviderError
	if goerrors.As(err, &providerErr) {
		return "provider_" + providerErr.Op
	}
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
