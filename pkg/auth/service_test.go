package auth

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-io/inkwell/pkg/observability"
)

type serviceFixture struct {
	service  *Service
	store    *memStore
	notifier *fakeNotifier
	tokens   *TokenService
	resets   *ResetTokenLedger
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store := newMemStore()
	notifier := &fakeNotifier{}
	tokens, err := NewTokenService(TokenConfig{Secret: []byte("test-secret"), TTL: time.Hour})
	require.NoError(t, err)
	resets := NewResetTokenLedger(store, 10*time.Minute)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	service := NewService(store, notifier, tokens, resets, logger, nil, ServiceConfig{
		ResetURLBase: "https://blog.example.com/reset-password",
	})

	return &serviceFixture{
		service:  service,
		store:    store,
		notifier: notifier,
		tokens:   tokens,
		resets:   resets,
	}
}

func TestService_SignupLoginVerify(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	session, err := f.service.Signup(ctx, SignupRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "alice-password",
	})
	require.NoError(t, err)
	require.NotNil(t, session.User)
	assert.Equal(t, "alice@example.com", session.User.Email)
	assert.Equal(t, RoleUser, session.User.Role)
	assert.Equal(t, KindLocal, session.User.Kind)
	assert.Empty(t, session.User.PasswordHash)
	assert.NotEmpty(t, session.Token)

	// The issued token verifies and resolves to the new account.
	user, err := f.service.VerifyBearer(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)

	// And a fresh login works with the normalized email.
	login, err := f.service.Login(ctx, "alice@example.com", "alice-password")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)
}

func TestService_Signup_Validation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SignupRequest
	}{
		{"missing username", SignupRequest{Email: "a@b.co", Password: "long enough pw"}},
		{"missing email", SignupRequest{Username: "a", Password: "long enough pw"}},
		{"missing password", SignupRequest{Username: "a", Email: "a@b.co"}},
		{"malformed email", SignupRequest{Username: "a", Email: "not-an-email", Password: "long enough pw"}},
		{"short password", SignupRequest{Username: "a", Email: "a@b.co", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Signup(ctx, tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestService_Signup_ReportsBothConflicts(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "alice-password"})
	require.NoError(t, err)

	_, err = f.service.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "other-password"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	// A single conflict reports only itself.
	_, err = f.service.Signup(ctx, SignupRequest{Username: "alice2", Email: "alice@example.com", Password: "other-password"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NotErrorIs(t, err, ErrDuplicateUsername)
}

func TestService_VerifyBearer_DeletedSubject(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	session, err := f.service.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "alice-password"})
	require.NoError(t, err)

	// Simulate account deletion; the signature still checks out.
	delete(f.store.users, session.User.ID)

	_, err = f.service.VerifyBearer(ctx, session.Token)
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestService_ForgotPassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	session, err := f.service.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "alice-password"})
	require.NoError(t, err)

	require.NoError(t, f.service.ForgotPassword(ctx, "alice@example.com"))
	require.Equal(t, 1, f.notifier.count())

	msg := f.notifier.last()
	assert.Equal(t, "alice@example.com", msg.to)
	assert.Contains(t, msg.body, "https://blog.example.com/reset-password/")

	// The mailed link carries the plaintext secret; the stored ticket is
	// its hash.
	stored := f.store.get(session.User.ID)
	require.NotEmpty(t, stored.ResetTokenHash)
	assert.NotContains(t, msg.body, stored.ResetTokenHash)

	secret := extractResetSecret(t, msg.body)
	assert.Equal(t, stored.ResetTokenHash, HashResetSecret(secret))
}

func TestService_ForgotPassword_UnknownEmail(t *testing.T) {
	f := newServiceFixture(t)

	err := f.service.ForgotPassword(context.Background(), "nobody@example.com")
	assert.NoError(t, err, "unknown email must not be distinguishable")
	assert.Equal(t, 0, f.notifier.count())
}

func TestService_ForgotPassword_NotifierFailureRollsBack(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	session, err := f.service.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "alice-password"})
	require.NoError(t, err)

	f.notifier.failWith = fmt.Errorf("smtp connect refused")
	err = f.service.ForgotPassword(ctx, "alice@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotificationFailed)

	// The ticket was rolled back: the user holds no outstanding secret
	// they were never told about.
	stored := f.store.get(session.User.ID)
	assert.Empty(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetExpiresAt)
}

func TestService_ResetPassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "old-password-1"})
	require.NoError(t, err)
	require.NoError(t, f.service.ForgotPassword(ctx, "alice@example.com"))
	secret := extractResetSecret(t, f.notifier.last().body)

	session, err := f.service.ResetPassword(ctx, secret, "new-password-1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	// Old password dead, new password live.
	_, err = f.service.Login(ctx, "alice@example.com", "old-password-1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.service.Login(ctx, "alice@example.com", "new-password-1")
	assert.NoError(t, err)

	// The secret is single-use.
	_, err = f.service.ResetPassword(ctx, secret, "another-password-1")
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestService_ResetPassword_WeakPasswordKeepsTicket(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "old-password-1"})
	require.NoError(t, err)
	require.NoError(t, f.service.ForgotPassword(ctx, "alice@example.com"))
	secret := extractResetSecret(t, f.notifier.last().body)

	// Invalid input is rejected before the ticket is touched.
	_, err = f.service.ResetPassword(ctx, secret, "short")
	require.ErrorIs(t, err, ErrInvalidInput)

	// The same secret still redeems afterwards.
	_, err = f.service.ResetPassword(ctx, secret, "new-password-1")
	assert.NoError(t, err)
}

func TestService_LinkFederated(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	session, err := f.service.LinkFederated(ctx, FederatedProfile{
		Subject: "google-sub-1",
		Email:   "carol@example.com",
		Name:    "carol",
	})
	require.NoError(t, err)
	assert.Equal(t, KindFederated, session.User.Kind)
	assert.NotEmpty(t, session.Token)

	user, err := f.service.VerifyBearer(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)
}

func TestService_AuthorizeMutation(t *testing.T) {
	f := newServiceFixture(t)

	owner := &User{ID: "user-1", Role: RoleUser}
	admin := &User{ID: "user-9", Role: RoleAdmin}

	assert.True(t, f.service.AuthorizeMutation(owner, "user-1"))
	assert.False(t, f.service.AuthorizeMutation(owner, "user-2"))
	assert.True(t, f.service.AuthorizeMutation(admin, "user-2"))
	assert.False(t, f.service.AuthorizeMutation(nil, "user-1"))
}

// extractResetSecret pulls the secret out of the reset email body, which
// embeds it as the last path segment of the reset link.
func extractResetSecret(t *testing.T, body string) string {
	t.Helper()
	const marker = "https://blog.example.com/reset-password/"
	idx := strings.Index(body, marker)
	require.GreaterOrEqual(t, idx, 0, "reset link missing from email body")
	rest := body[idx+len(marker):]
	if end := strings.IndexAny(rest, " \n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
