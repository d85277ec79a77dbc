package ports

import "context"

// CredentialVerifier authenticates a user from credentials and returns the
// verified user ID. The session core never validates passwords itself;
// this is the boundary to the external auth collaborator.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (int64, error)
}

// RegisterInput carries the fields needed to create a storefront account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// UserRegistrar creates a new account and returns the new user ID.
// Not every verifier supports registration (an IdP-backed deployment
// manages accounts upstream); callers must handle ErrUnsupported-style
// errors from such adapters.
type UserRegistrar interface {
	Register(ctx context.Context, in RegisterInput) (int64, error)
}
