package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/inkwell-io/inkwell/pkg/auth"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user',
	kind TEXT NOT NULL DEFAULT 'local',
	password_hash TEXT,
	provider_subject TEXT,
	profile_image_url TEXT,
	reset_token_hash TEXT,
	reset_expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users(email);
CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users(username);
CREATE UNIQUE INDEX IF NOT EXISTS users_provider_subject_key ON users(provider_subject) WHERE provider_subject IS NOT NULL;
CREATE INDEX IF NOT EXISTS users_reset_token_hash_idx ON users(reset_token_hash) WHERE reset_token_hash IS NOT NULL;
`

const userColumns = `id, username, email, role, kind,
	COALESCE(password_hash, ''), COALESCE(provider_subject, ''),
	COALESCE(profile_image_url, ''), COALESCE(reset_token_hash, ''),
	reset_expires_at, created_at, updated_at`

// UserStore implements auth.UserStore on PostgreSQL.
//
// Every mutation is a single UPDATE, so the per-row atomicity the auth
// core requires falls out of postgres row locking: concurrent writes to
// the same user's reset ticket serialize, last writer wins.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates the store, creating the users table if it does not
// exist.
func NewUserStore(db *sql.DB) (*UserStore, error) {
	if _, err := db.Exec(createUsersTable); err != nil {
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}
	return &UserStore{db: db}, nil
}

// FindByID retrieves a user by primary key.
func (s *UserStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail retrieves a user by normalized email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByUsername retrieves a user by username.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByProviderSubject retrieves a federated user by provider subject.
func (s *UserStore) FindByProviderSubject(ctx context.Context, subject string) (*auth.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE provider_subject = $1`, subject)
}

// FindByResetTokenHash retrieves the user holding the given reset ticket
// hash.
func (s *UserStore) FindByResetTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token_hash = $1`, tokenHash)
}

// Create inserts a new user. Unique violations map to the matching
// duplicate sentinel.
func (s *UserStore) Create(ctx context.Context, fields auth.NewUser) (*auth.User, error) {
	user := &auth.User{
		ID:              uuid.NewString(),
		Username:        fields.Username,
		Email:           fields.Email,
		Role:            fields.Role,
		Kind:            fields.Kind,
		PasswordHash:    fields.PasswordHash,
		ProviderSubject: fields.ProviderSubject,
		ProfileImageURL: fields.ProfileImageURL,
	}

	query := `
		INSERT INTO users (id, username, email, role, kind, password_hash, provider_subject, profile_image_url)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.Role, user.Kind,
		user.PasswordHash, user.ProviderSubject, user.ProfileImageURL,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapCreateError(err)
	}

	return user, nil
}

// UpdatePassword replaces the stored password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	return s.exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`, userID, passwordHash)
}

// UpdateResetTicket stores the hashed reset secret and its expiry,
// overwriting any prior ticket.
func (s *UserStore) UpdateResetTicket(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	return s.exec(ctx, `
		UPDATE users SET reset_token_hash = $2, reset_expires_at = $3, updated_at = NOW() WHERE id = $1
	`, userID, tokenHash, expiresAt)
}

// ClearResetTicket removes the user's reset ticket, if any.
func (s *UserStore) ClearResetTicket(ctx context.Context, userID string) error {
	return s.exec(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_expires_at = NULL, updated_at = NOW() WHERE id = $1
	`, userID)
}

// ClearExpiredResetTickets removes every lapsed ticket and returns how
// many rows were touched. Run periodically; a lapsed ticket is already
// unusable, this just keeps the rows tidy.
func (s *UserStore) ClearExpiredResetTickets(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_expires_at = NULL
		WHERE reset_expires_at IS NOT NULL AND reset_expires_at <= NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to clear expired reset tickets: %v", auth.ErrStorageUnavailable, err)
	}
	return result.RowsAffected()
}

func (s *UserStore) findOne(ctx context.Context, query string, arg interface{}) (*auth.User, error) {
	user := &auth.User{}
	var resetExpiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.Role, &user.Kind,
		&user.PasswordHash, &user.ProviderSubject,
		&user.ProfileImageURL, &user.ResetTokenHash,
		&resetExpiresAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query user: %v", auth.ErrStorageUnavailable, err)
	}

	if resetExpiresAt.Valid {
		t := resetExpiresAt.Time
		user.ResetExpiresAt = &t
	}
	return user, nil
}

func (s *UserStore) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to update user: %v", auth.ErrStorageUnavailable, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read update result: %v", auth.ErrStorageUnavailable, err)
	}
	if rows == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func mapCreateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_email_key":
			return auth.ErrDuplicateEmail
		case "users_username_key":
			return auth.ErrDuplicateUsername
		case "users_provider_subject_key":
			return auth.ErrDuplicateEmail
		}
	}
	return fmt.Errorf("%w: failed to insert user: %v", auth.ErrStorageUnavailable, err)
}
