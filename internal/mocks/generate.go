// Package mocks provides gomock implementations of the ports in internal/ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	users := mocks.NewMockUserRepository(ctrl)
//	users.EXPECT().GetByEmail(gomock.Any(), "a@shop.test").Return(user, nil)
//
// Hand-written doubles with function fields live in internal/mocks/auth.
package mocks

// UserRepository: Create, GetByID, GetByEmail, GetByProviderSubject, LinkProviderSubject
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_repository_mock.go github.com/target/marketgate/internal/ports UserRepository

// RevocationStore: Revoke, IsRevoked
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=revocation_store_mock.go github.com/target/marketgate/internal/ports RevocationStore

// CredentialVerifier: Verify
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_verifier_mock.go github.com/target/marketgate/internal/ports CredentialVerifier
