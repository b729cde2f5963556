package auth

import (
	"strings"
	"time"
)

// Role represents a user's platform-wide role
type Role string

const (
	RoleUser  Role = "user"  // Can manage own content
	RoleAdmin Role = "admin" // Can manage all content
)

// AccountKind distinguishes how an account authenticates
type AccountKind string

const (
	// KindLocal accounts authenticate with an email/password pair.
	KindLocal AccountKind = "local"
	// KindFederated accounts authenticate through an external identity
	// provider and never hold a password hash.
	KindFederated AccountKind = "federated"
)

// User represents an authenticated principal.
//
// Exactly one of the two account shapes holds: a local user always has a
// non-empty PasswordHash and an empty ProviderSubject; a federated user has
// an empty PasswordHash and a non-empty, globally unique ProviderSubject.
type User struct {
	ID              string      `json:"id"`
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	Role            Role        `json:"role"`
	Kind            AccountKind `json:"kind"`
	PasswordHash    string      `json:"-"` // Never expose hash
	ProviderSubject string      `json:"-"`
	ProfileImageURL string      `json:"profile_image_url,omitempty"`

	// Reset ticket: at most one active per user, stored hashed.
	ResetTokenHash string     `json:"-"`
	ResetExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasActiveResetTicket reports whether a reset ticket exists and has not
// lapsed as of now.
func (u *User) HasActiveResetTicket(now time.Time) bool {
	return u.ResetTokenHash != "" && u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now)
}

// Sanitized returns a copy safe to hand outside the auth subsystem: the
// password hash and reset ticket are stripped.
func (u *User) Sanitized() *User {
	c := *u
	c.PasswordHash = ""
	c.ResetTokenHash = ""
	c.ResetExpiresAt = nil
	return &c
}

// NormalizeEmail lowercases and trims an email address. All store lookups
// and uniqueness checks operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
