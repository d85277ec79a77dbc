// Package mocks provides mock implementations for testing the session core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the port interfaces consumed by the service layer. The mocks are generated
// with go:generate directives and committed, so tests build without codegen.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	products := mocks.NewMockProductReader(ctrl)
//	products.EXPECT().GetByID(gomock.Any(), int64(1)).Return(product, nil)
package mocks

// Generate mock for ProductReader, the catalog lookup used by cart migration.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=product_reader_mock.go github.com/leafcart/storefront-api/internal/ports ProductReader

// Generate mock for CartRepository, the persistent user cart store.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cart_repository_mock.go github.com/leafcart/storefront-api/internal/ports CartRepository

// Generate mock for CredentialVerifier, the boundary to the auth collaborator.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_verifier_mock.go github.com/leafcart/storefront-api/internal/ports CredentialVerifier
