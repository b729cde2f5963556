package auth

import "errors"

// Expected authentication failures. Handlers map these to 4xx responses;
// anything else coming out of the service is an infrastructure error and
// maps to a generic 500.
var (
	// ErrInvalidCredentials covers both "no such account" and "wrong
	// password" so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrWrongLoginMethod is returned when a password login is attempted
	// against a federated account.
	ErrWrongLoginMethod = errors.New("please log in with your Google account")

	// ErrEmailAlreadyLocal is returned when a federated login matches the
	// email of an existing password account. Silent merges are refused.
	ErrEmailAlreadyLocal = errors.New("email already registered with a password account")

	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")

	// Token verification failures. All of them mean "anonymous", never a
	// server error.
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")

	// ErrUnknownSubject is returned when a validly signed token names a
	// user that no longer resolves.
	ErrUnknownSubject = errors.New("user no longer exists")

	// ErrResetTokenInvalid covers unknown, already-consumed and expired
	// reset secrets alike.
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")

	// ErrNotFound is the store-level sentinel for a missing user.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidInput marks request validation failures: missing fields,
	// malformed email, too-short password.
	ErrInvalidInput = errors.New("invalid input")
)

// Infrastructure failures. These are collaborator errors, distinct from
// the authentication taxonomy above, and map to generic 5xx handling.
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotificationFailed = errors.New("notification delivery failed")
)

// IsAuthFailure reports whether err is an expected authentication failure
// rather than an infrastructure error.
func IsAuthFailure(err error) bool {
	for _, known := range []error{
		ErrInvalidCredentials,
		ErrWrongLoginMethod,
		ErrEmailAlreadyLocal,
		ErrDuplicateEmail,
		ErrDuplicateUsername,
		ErrTokenSignature,
		ErrTokenExpired,
		ErrTokenMalformed,
		ErrUnknownSubject,
		ErrResetTokenInvalid,
		ErrInvalidInput,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
