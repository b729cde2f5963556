package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const createTableQuery = `
CREATE TABLE IF NOT EXISTS auth_audit_logs (
	id BIGSERIAL PRIMARY KEY,
	action TEXT NOT NULL,
	status TEXT NOT NULL,
	user_id TEXT,
	email TEXT,
	ip_address TEXT,
	user_agent TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_auth_audit_logs_user_id ON auth_audit_logs(user_id);
CREATE INDEX IF NOT EXISTS idx_auth_audit_logs_created_at ON auth_audit_logs(created_at);
`

// DBLogger writes audit events to PostgreSQL.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger, creating the table
// if it does not exist.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}
	return &DBLogger{db: db}, nil
}

// Record inserts a single audit event.
func (l *DBLogger) Record(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event action is required")
	}
	if event.Status == "" {
		return fmt.Errorf("audit event status is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO auth_audit_logs (action, status, user_id, email, ip_address, user_agent, error_message, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
	`
	_, err := l.db.ExecContext(ctx, query,
		event.Action, event.Status, event.UserID, event.Email,
		event.IPAddress, event.UserAgent, event.ErrorMessage, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Search returns events matching the filter, newest first.
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := `
		SELECT id, action, status,
		       COALESCE(user_id, ''), COALESCE(email, ''),
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''),
		       COALESCE(error_message, ''), created_at
		FROM auth_audit_logs
		WHERE ($1 = '' OR user_id = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, query, filter.UserID, string(filter.Action), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Action, &e.Status, &e.UserID, &e.Email,
			&e.IPAddress, &e.UserAgent, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SearchFilter narrows Search results.
type SearchFilter struct {
	UserID string
	Action Action
	Limit  int
}
