package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/inkwell-io/inkwell/pkg/audit"
	"github.com/inkwell-io/inkwell/pkg/observability"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ServiceConfig holds the non-collaborator tunables of the auth boundary.
type ServiceConfig struct {
	// ResetURLBase is the frontend URL the reset secret is appended to in
	// the reset email, e.g. "https://blog.example.com/reset-password".
	ResetURLBase string
}

// Service is the boundary the routing layer talks to. Each operation
// returns either a success payload (sanitized user, plus a bearer token
// where applicable) or a typed failure; expected auth failures satisfy
// IsAuthFailure and are never surfaced as infrastructure errors.
type Service struct {
	store    UserStore
	notifier Notifier
	tokens   *TokenService
	resets   *ResetTokenLedger
	creds    *CredentialAuthenticator
	linker   *FederatedIdentityLinker
	logger   *observability.Logger
	audit    audit.Logger
	cfg      ServiceConfig
}

// NewService wires the auth boundary. A nil auditLogger disables auditing.
func NewService(
	store UserStore,
	notifier Notifier,
	tokens *TokenService,
	resets *ResetTokenLedger,
	logger *observability.Logger,
	auditLogger audit.Logger,
	cfg ServiceConfig,
) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		store:    store,
		notifier: notifier,
		tokens:   tokens,
		resets:   resets,
		creds:    NewCredentialAuthenticator(store),
		linker:   NewFederatedIdentityLinker(store),
		logger:   logger,
		audit:    auditLogger,
		cfg:      cfg,
	}
}

// Session is the success payload of the operations that establish an
// authenticated session.
type Session struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// SignupRequest carries the fields of a local signup.
type SignupRequest struct {
	Username        string
	Email           string
	Password        string
	ProfileImageURL string
}

// Signup registers a local account and logs it straight in.
//
// Both uniqueness violations are checked before either is reported, and a
// request that trips both gets both back in one error (errors.Is matches
// each sentinel).
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	email := NormalizeEmail(req.Email)
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var conflicts []error
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		conflicts = append(conflicts, ErrDuplicateEmail)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if _, err := s.store.FindByUsername(ctx, req.Username); err == nil {
		conflicts = append(conflicts, ErrDuplicateUsername)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if len(conflicts) > 0 {
		s.record(ctx, audit.ActionSignup, audit.StatusFailure, "", email, errors.Join(conflicts...))
		return nil, errors.Join(conflicts...)
	}

	user, err := s.store.Create(ctx, NewUser{
		Username:        req.Username,
		Email:           email,
		Role:            RoleUser,
		Kind:            KindLocal,
		PasswordHash:    hash,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.record(ctx, audit.ActionSignup, audit.StatusSuccess, user.ID, email, nil)
	return s.session(user)
}

// Login verifies an email/password pair and returns a fresh session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.creds.Authenticate(ctx, email, password)
	if err != nil {
		s.record(ctx, audit.ActionLogin, audit.StatusFailure, "", NormalizeEmail(email), err)
		return nil, err
	}

	s.record(ctx, audit.ActionLogin, audit.StatusSuccess, user.ID, user.Email, nil)
	return s.session(user)
}

// VerifyBearer verifies a bearer token and resolves its subject to a live
// user. A valid signature over a deleted account fails closed with
// ErrUnknownSubject.
func (s *Service) VerifyBearer(ctx context.Context, tokenString string) (*User, error) {
	subjectID, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}

	return user.Sanitized(), nil
}

// ForgotPassword issues a reset ticket and emails the secret. An unknown
// email succeeds without side effects so responses don't reveal which
// accounts exist. If the email cannot be sent, the ticket is rolled back:
// a user must never hold an outstanding ticket they were not told about.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	secret, err := s.resets.Issue(ctx, user)
	if err != nil {
		return err
	}

	subject := "Reset your password"
	body := fmt.Sprintf(
		"You are receiving this email because a password reset was requested for your account.\n\n"+
			"Follow this link to reset your password: %s/%s\n\n"+
			"The link expires in %d minutes. If you did not request this, ignore this email.",
		s.cfg.ResetURLBase, secret, int(s.resets.ttl/time.Minute),
	)

	if err := s.notifier.Send(ctx, user.Email, subject, body); err != nil {
		sendErr := fmt.Errorf("%w: %v", ErrNotificationFailed, err)
		if revokeErr := s.resets.Revoke(ctx, user.ID); revokeErr != nil {
			// Rollback failed too; surface both rather than hiding either.
			sendErr = errors.Join(sendErr, fmt.Errorf("failed to roll back reset ticket: %w", revokeErr))
		}
		s.record(ctx, audit.ActionResetRequested, audit.StatusFailure, user.ID, user.Email, sendErr)
		return sendErr
	}

	s.record(ctx, audit.ActionResetRequested, audit.StatusSuccess, user.ID, user.Email, nil)
	return nil
}

// ResetPassword consumes a reset secret and installs the new password,
// then logs the user in. Consumption and the password update are one
// logical step: the ticket is burned even if the update fails, so a secret
// is never replayable.
func (s *Service) ResetPassword(ctx context.Context, secret, newPassword string) (*Session, error) {
	// Validate locally before touching the ticket.
	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	user, err := s.resets.Consume(ctx, secret)
	if err != nil {
		s.record(ctx, audit.ActionResetCompleted, audit.StatusFailure, "", "", err)
		return nil, err
	}

	if err := s.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.record(ctx, audit.ActionResetCompleted, audit.StatusFailure, user.ID, user.Email, err)
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	s.record(ctx, audit.ActionResetCompleted, audit.StatusSuccess, user.ID, user.Email, nil)
	return s.session(user.Sanitized())
}

// LinkFederated reconciles an identity-provider profile with a local
// account and returns a fresh session.
func (s *Service) LinkFederated(ctx context.Context, profile FederatedProfile) (*Session, error) {
	user, err := s.linker.LinkOrCreate(ctx, profile)
	if err != nil {
		s.record(ctx, audit.ActionFederatedLogin, audit.StatusFailure, "", NormalizeEmail(profile.Email), err)
		return nil, err
	}

	s.record(ctx, audit.ActionFederatedLogin, audit.StatusSuccess, user.ID, user.Email, nil)
	return s.session(user)
}

// AuthorizeMutation reports whether user may mutate a resource owned by
// ownerID.
func (s *Service) AuthorizeMutation(user *User, ownerID string) bool {
	return CanMutate(user, ownerID)
}

// GetUser returns the sanitized user with the given ID.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *Service) session(user *User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

func (s *Service) record(ctx context.Context, action audit.Action, status, userID, email string, cause error) {
	event := audit.Event{
		Action: action,
		Status: status,
		UserID: userID,
		Email:  email,
	}
	if cause != nil {
		event.ErrorMessage = cause.Error()
	}
	if err := s.audit.Record(ctx, event); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("failed to record audit event")
	}
}
