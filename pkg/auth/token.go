package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig holds the signing parameters for bearer tokens. It is built
// once at process start and passed into NewTokenService; nothing in this
// package reads process-wide state.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// TokenService issues and verifies signed, stateless bearer tokens. A
// token is valid iff its HMAC signature checks out and its expiry has not
// passed; no server-side session table is consulted. Individual tokens
// cannot be revoked before expiry.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service with the given signing config.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	return &TokenService{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		now:    time.Now,
	}, nil
}

// Issue signs a token asserting subjectID, expiring TTL from now.
func (ts *TokenService) Issue(subjectID string) (string, error) {
	now := ts.now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature integrity and expiry, returning the embedded
// subject ID. Signature is checked before any claim is inspected; a
// tampered payload never reaches expiry handling. Resolving the subject to
// a live user is the caller's job.
func (ts *TokenService) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return ts.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrTokenSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		default:
			return "", ErrTokenMalformed
		}
	}

	if claims.Subject == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}
