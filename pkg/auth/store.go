package auth

import (
	"context"
	"time"
)

// NewUser carries the fields for creating a user record. ID and timestamps
// are assigned by the store.
type NewUser struct {
	Username        string
	Email           string
	Role            Role
	Kind            AccountKind
	PasswordHash    string
	ProviderSubject string
	ProfileImageURL string
}

// UserStore is the persistence collaborator for user records.
//
// Implementations must make each mutating call an atomic per-row update:
// concurrent writes to the same user's reset ticket or password hash must
// serialize at the storage layer (last writer wins on the ticket). The auth
// core takes no locks of its own and relies on that contract.
//
// Lookups return ErrNotFound when no user matches.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByProviderSubject(ctx context.Context, subject string) (*User, error)
	FindByResetTokenHash(ctx context.Context, tokenHash string) (*User, error)

	Create(ctx context.Context, fields NewUser) (*User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error

	// UpdateResetTicket stores the hashed reset secret and its expiry,
	// overwriting any prior ticket.
	UpdateResetTicket(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error

	// ClearResetTicket removes the user's reset ticket, if any.
	ClearResetTicket(ctx context.Context, userID string) error
}

// Notifier is the outbound delivery collaborator (email). Failures are
// returned, never swallowed; the caller decides how to compensate.
type Notifier interface {
	Send(ctx context.Context, to string, subject string, body string) error
}
