package auth

import (
	"context"

	"github.com/mmynk/splitledger/internal/models"
)

// Authenticator registers and verifies accounts. PasswordAuthenticator is
// the only implementation; the service layer depends on this interface so
// tests can substitute their own.
type Authenticator interface {
	// Register creates an account for email. The credential format depends
	// on the implementation.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the account matching email and credential.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)
}
