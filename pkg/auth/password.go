package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum accepted plaintext password length.
const MinPasswordLength = 8

// HashPassword produces a salted bcrypt digest of the plaintext. Each call
// salts independently, so two hashes of the same input differ byte-wise
// while both verify.
func HashPassword(plaintext string) (string, error) {
	if len(plaintext) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(digest), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
// A malformed or corrupt stored hash verifies false rather than erroring,
// so callers cannot distinguish a wrong password from a damaged record.
func VerifyPassword(hash string, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
