package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS auth_audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	return logger, mock
}

func TestDBLogger_Record(t *testing.T) {
	logger, mock := newTestLogger(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auth_audit_logs")).
		WithArgs("auth.login", StatusSuccess, "id-1", "alice@example.com",
			"", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := logger.Record(context.Background(), Event{
		Action: ActionLogin,
		Status: StatusSuccess,
		UserID: "id-1",
		Email:  "alice@example.com",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_Record_Validation(t *testing.T) {
	logger, _ := newTestLogger(t)
	ctx := context.Background()

	err := logger.Record(ctx, Event{Status: StatusSuccess})
	assert.Error(t, err, "missing action accepted")

	err = logger.Record(ctx, Event{Action: ActionLogin})
	assert.Error(t, err, "missing status accepted")
}

func TestDBLogger_Search(t *testing.T) {
	logger, mock := newTestLogger(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "action", "status", "user_id", "email",
		"ip_address", "user_agent", "error_message", "created_at",
	}).
		AddRow(2, "auth.login", StatusFailure, "id-1", "alice@example.com", "", "", "incorrect email or password", now).
		AddRow(1, "auth.signup", StatusSuccess, "id-1", "alice@example.com", "", "", "", now.Add(-time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM auth_audit_logs").
		WithArgs("id-1", "", 50).
		WillReturnRows(rows)

	events, err := logger.Search(context.Background(), SearchFilter{UserID: "id-1", Limit: 50})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionLogin, events[0].Action)
	assert.Equal(t, StatusFailure, events[0].Status)
	assert.Equal(t, "incorrect email or password", events[0].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_Search_DefaultLimit(t *testing.T) {
	logger, mock := newTestLogger(t)

	mock.ExpectQuery("SELECT (.+) FROM auth_audit_logs").
		WithArgs("", "", 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "action", "status", "user_id", "email",
			"ip_address", "user_agent", "error_message", "created_at",
		}))

	events, err := logger.Search(context.Background(), SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	if err := l.Record(context.Background(), Event{}); err != nil {
		t.Errorf("NopLogger.Record() error = %v", err)
	}
}
