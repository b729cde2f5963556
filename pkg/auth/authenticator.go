package auth

import (
	"context"
	"errors"
	"fmt"
)

// CredentialAuthenticator verifies email/password pairs against stored
// credentials.
type CredentialAuthenticator struct {
	store UserStore
}

// NewCredentialAuthenticator creates an authenticator over the given store.
func NewCredentialAuthenticator(store UserStore) *CredentialAuthenticator {
	return &CredentialAuthenticator{store: store}
}

// Authenticate verifies the pair and returns the sanitized user.
//
// Unknown email and wrong password both fail ErrInvalidCredentials; a
// password attempt against a federated account fails ErrWrongLoginMethod.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := a.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.Kind != KindLocal || user.PasswordHash == "" {
		return nil, ErrWrongLoginMethod
	}

	if !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return user.Sanitized(), nil
}
