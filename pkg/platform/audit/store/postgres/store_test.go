package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "entrypass/pkg/domain"
	audit "entrypass/pkg/platform/audit"
	txcontext "entrypass/pkg/platform/tx"
)

var eventCols = []string{
	"category", "timestamp", "user_id", "destination", "subject",
	"action", "reason", "request_id", "device",
}

func newStoreWithMock(t *testing.T) (*Store, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db, mock
}

func TestStore_AppendDerivesCategory(t *testing.T) {
	store, _, mock := newStoreWithMock(t)
	userID := id.UserID(uuid.New())
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO audit_events`).
		WithArgs(sqlmock.AnyArg(), "compliance", at, uuid.UUID(userID).String(), "th", "snap-1",
			"entry_submitted", "", "req-1", "Safari/iOS").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Append(context.Background(), audit.Event{
		Category:    audit.CategoryOperations,
		Timestamp:   at,
		UserID:      userID,
		Destination: "th",
		Subject:     "snap-1",
		Action:      string(audit.EventEntrySubmitted),
		RequestID:   "req-1",
		Device:      "Safari/iOS",
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendJoinsAmbientTransaction(t *testing.T) {
	store, db, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_events`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("snapshot insert failed")
	err := txcontext.Run(context.Background(), db, func(ctx context.Context) error {
		require.NoError(t, store.Append(ctx, audit.Event{
			Timestamp: time.Now(),
			Action:    string(audit.EventSubmissionFailed),
		}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListByUser(t *testing.T) {
	store, _, mock := newStoreWithMock(t)
	userID := id.UserID(uuid.New())
	newer := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT category, timestamp, user_id.+FROM audit_events\s+WHERE user_id = \$1\s+ORDER BY timestamp DESC`).
		WithArgs(uuid.UUID(userID).String()).
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow("compliance", newer, uuid.UUID(userID).String(), "th", "snap-2", "entry_submitted", "", "req-2", "").
			AddRow("compliance", newer.Add(-time.Hour), uuid.UUID(userID).String(), "th", "snap-1", "entry_superseded", "superseded_by=snap-2", "", ""))

	events, err := store.ListByUser(context.Background(), userID)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, userID, events[0].UserID)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, id.DestinationID("th"), events[1].Destination)
	assert.Equal(t, "superseded_by=snap-2", events[1].Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListByUserQueryError(t *testing.T) {
	store, _, mock := newStoreWithMock(t)
	mock.ExpectQuery(`SELECT .+ FROM audit_events`).WillReturnError(errors.New("connection reset"))

	_, err := store.ListByUser(context.Background(), id.UserID(uuid.New()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "query audit events")
}
