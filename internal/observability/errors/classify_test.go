package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	apperrors "github.com/target/marketgate/internal/errors"
)

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"decode", fmt.Errorf("gate: %w", &domainauth.TokenDecodeError{Reason: domainauth.DecodeReasonBase64}), "token_base64"},
		{"profile transport", &domainauth.ProfileFetchError{Message: "dial"}, "profile_transport"},
		{"profile http", &domainauth.ProfileFetchError{Status: 502}, "profile_http"},
		{"denied", &domainauth.UnauthorizedAccess{Role: domainauth.RoleCustomer, Area: domainauth.AreaAdmin}, "unauthorized_access"},
		{"provider", &domainauth.AuthProviderError{Op: "login"}, "provider_login"},
		{"app error", fmt.Errorf("svc: %w", apperrors.Conflict("email", "dup")), "conflict"},
		{"custom", fmt.Errorf("wrap: %w", customErr{}), "errors_customerr"},
		{"plain", errors.New("x"), "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
