package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ResetSecretLength is the number of random bytes in a reset secret
// (32 bytes = 256 bits of entropy).
const ResetSecretLength = 32

// DefaultResetTTL is how long a reset ticket stays valid.
const DefaultResetTTL = 10 * time.Minute

// HashResetSecret computes the stored form of a reset secret. SHA-256 is
// sufficient here: the secret is high-entropy random material, not a
// user-chosen password.
func HashResetSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// ResetTokenLedger manages the password-reset ticket lifecycle: a random
// single-use secret whose hash and expiry live on the user record. At most
// one ticket is active per user; issuing again overwrites the prior one,
// which revokes any outstanding secret by replacement.
type ResetTokenLedger struct {
	store UserStore
	ttl   time.Duration
	now   func() time.Time
}

// NewResetTokenLedger creates a ledger over the given store. A zero ttl
// falls back to DefaultResetTTL.
func NewResetTokenLedger(store UserStore, ttl time.Duration) *ResetTokenLedger {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetTokenLedger{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Issue generates a fresh reset secret for user, persists its hash and
// expiry, and returns the plaintext secret for out-of-band delivery. The
// plaintext is never stored or logged. If persistence fails, no secret is
// returned.
func (l *ResetTokenLedger) Issue(ctx context.Context, user *User) (string, error) {
	raw := make([]byte, ResetSecretLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate reset secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	expiresAt := l.now().Add(l.ttl)
	if err := l.store.UpdateResetTicket(ctx, user.ID, HashResetSecret(secret), expiresAt); err != nil {
		return "", fmt.Errorf("failed to persist reset ticket: %w", err)
	}

	return secret, nil
}

// Consume redeems a presented secret exactly once. On a hash match with an
// unexpired ticket the ticket is cleared and the user returned; any other
// outcome is ErrResetTokenInvalid with no mutation. The ticket is cleared
// on match regardless of what the caller does next, so a secret can never
// be replayed.
func (l *ResetTokenLedger) Consume(ctx context.Context, secret string) (*User, error) {
	user, err := l.store.FindByResetTokenHash(ctx, HashResetSecret(secret))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("failed to look up reset ticket: %w", err)
	}

	if !user.HasActiveResetTicket(l.now()) {
		return nil, ErrResetTokenInvalid
	}

	if err := l.store.ClearResetTicket(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to clear reset ticket: %w", err)
	}

	user.ResetTokenHash = ""
	user.ResetExpiresAt = nil
	return user, nil
}

// Revoke drops user's outstanding ticket, used to roll back an issued
// ticket whose notification could not be delivered.
func (l *ResetTokenLedger) Revoke(ctx context.Context, userID string) error {
	return l.store.ClearResetTicket(ctx, userID)
}
