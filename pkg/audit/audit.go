// Package audit records security-relevant authentication events.
//
// Every login attempt, signup, federated link, and reset-ticket operation
// produces one event. Events are append-only; nothing in the service reads
// them back on the hot path.
package audit

import (
	"context"
	"time"
)

// Action identifies what happened.
type Action string

const (
	ActionSignup         Action = "auth.signup"
	ActionLogin          Action = "auth.login"
	ActionFederatedLogin Action = "auth.federated_login"
	ActionTokenVerify    Action = "auth.token_verify"
	ActionResetRequested Action = "auth.reset_requested"
	ActionResetCompleted Action = "auth.reset_completed"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// Event is a single audit record.
type Event struct {
	ID           int64     `json:"id"`
	Action       Action    `json:"action"`
	Status       string    `json:"status"`
	UserID       string    `json:"user_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Logger records audit events. Implementations must not block the request
// path on anything slower than a single insert.
type Logger interface {
	Record(ctx context.Context, event Event) error
}

// NopLogger discards all events. Used when auditing is disabled and in
// tests that don't assert on the trail.
type NopLogger struct{}

// Record implements Logger.
func (NopLogger) Record(ctx context.Context, event Event) error { return nil }
