package testutil

import (
	"fmt"
	"sync/atomic"

	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/ports"
)

var userSeq atomic.Int64

// UserInputBuilder provides a fluent interface for building CreateUserInput values.
type UserInputBuilder struct {
	in ports.CreateUserInput
}

// NewUserInput returns a builder for a CUSTOMER with a unique email.
func NewUserInput() *UserInputBuilder {
	n := userSeq.Add(1)
	return &UserInputBuilder{in: ports.CreateUserInput{
		Email:     fmt.Sprintf("user-%d@shop.test", n),
		Role:      domainauth.RoleCustomer,
		FirstName: "Test",
		LastName:  fmt.Sprintf("User%d", n),
	}}
}

// WithEmail sets the email.
func (b *UserInputBuilder) WithEmail(email string) *UserInputBuilder {
	b.in.Email = email
	return b
}

// WithRole sets the role.
func (b *UserInputBuilder) WithRole(role domainauth.Role) *UserInputBuilder {
	b.in.Role = role
	return b
}

// WithPasswordHash sets a precomputed password hash.
func (b *UserInputBuilder) WithPasswordHash(hash string) *UserInputBuilder {
	b.in.PasswordHash = hash
	return b
}

// WithBusiness sets the business id.
func (b *UserInputBuilder) WithBusiness(id string) *UserInputBuilder {
	b.in.BusinessID = id
	return b
}

// WithProviderSubject links the account to an identity provider subject.
func (b *UserInputBuilder) WithProviderSubject(sub string) *UserInputBuilder {
	b.in.ProviderSubject = sub
	return b
}

// Build returns the input.
func (b *UserInputBuilder) Build() ports.CreateUserInput {
	return b.in
}
