package store

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

	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/sentinel"
)

func newBackendWithMock(t *testing.T, opts ...PostgresOption) (*PostgresBackend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresBackend(db, opts...), mock
}

var columns = []string{"id", "user_id", "destination", "payload", "sealed", "created_at", "updated_at"}

func TestPostgresBackend_Upsert(t *testing.T) {
	backend, mock := newBackendWithMock(t)
	rec := Record{
		Table:       models.KindTravelInfo,
		ID:          id.NewEntityID(),
		UserID:      id.UserID(id.NewEntityID()),
		Destination: "th",
		Payload:     []byte(`{"arrival_date":"2026-04-01"}`),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	mock.ExpectExec(`INSERT INTO travel_infos .* ON CONFLICT \(id\) DO UPDATE SET .* WHERE travel_infos\.user_id = EXCLUDED\.user_id`).
		WithArgs(rec.ID.String(), rec.UserID.String(), "th", rec.Payload, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, backend.Upsert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_UpsertForeignRowConflicts(t *testing.T) {
	backend, mock := newBackendWithMock(t)
	mock.ExpectExec(`INSERT INTO passports`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := backend.Upsert(context.Background(), Record{Table: models.KindPassport, ID: id.NewEntityID()})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestPostgresBackend_UnknownTable(t *testing.T) {
	backend, _ := newBackendWithMock(t)
	assert.Error(t, backend.Upsert(context.Background(), Record{Table: "visa"}))
}

func TestPostgresBackend_SealedRoundTrip(t *testing.T) {
	sealer, err := NewSealer(make([]byte, 32))
	require.NoError(t, err)
	backend, mock := newBackendWithMock(t, WithSealer(sealer))

	entityID := id.NewEntityID()
	userID := id.UserID(id.NewEntityID())
	plain := []byte(`{"passport_number":"E12345678"}`)

	var stored []byte
	mock.ExpectExec(`INSERT INTO passports`).
		WithArgs(entityID.String(), userID.String(), "", sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, backend.Upsert(context.Background(), Record{
		Table: models.KindPassport, ID: entityID, UserID: userID, Payload: plain,
	}))

	stored, err = sealer.Seal(plain, entityID[:])
	require.NoError(t, err)
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM passports\s+WHERE id = \$1`).
		WithArgs(entityID.String()).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(uuid.UUID(entityID).String(), uuid.UUID(userID).String(), "", stored, true, now, now))

	got, err := backend.Get(context.Background(), models.KindPassport, entityID)
	require.NoError(t, err)
	assert.Equal(t, plain, got.Payload)
	assert.Equal(t, userID, got.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_GetMissing(t *testing.T) {
	backend, mock := newBackendWithMock(t)
	mock.ExpectQuery(`SELECT .* FROM fund_items`).WillReturnError(sql.ErrNoRows)

	_, err := backend.Get(context.Background(), models.KindFundItem, id.NewEntityID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresBackend_QueryWithDestination(t *testing.T) {
	backend, mock := newBackendWithMock(t)
	userID := id.UserID(id.NewEntityID())
	travelID := id.NewEntityID()
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM travel_infos\s+WHERE user_id = \$1\s+AND destination = ANY\(\$2\) ORDER BY created_at`).
		WithArgs(userID.String(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(travelID.String(), userID.String(), "th", []byte(`{}`), false, now, now))

	recs, err := backend.Query(context.Background(), Query{
		UserID:      userID,
		Tables:      []models.Kind{models.KindTravelInfo},
		Destination: "th",
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, travelID, recs[0].ID)
	assert.Equal(t, id.DestinationID("th"), recs[0].Destination)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_QueryError(t *testing.T) {
	backend, mock := newBackendWithMock(t)
	mock.ExpectQuery(`SELECT .* FROM passports`).WillReturnError(errors.New("db is down"))

	_, err := backend.Query(context.Background(), Query{UserID: id.UserID(id.NewEntityID())})
	assert.ErrorContains(t, err, "query passports")
}

func TestPostgresBackend_Delete(t *testing.T) {
	backend, mock := newBackendWithMock(t)
	entityID := id.NewEntityID()

	mock.ExpectExec(`DELETE FROM fund_items WHERE id = \$1`).
		WithArgs(entityID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM fund_items WHERE id = \$1`).
		WithArgs(entityID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, backend.Delete(context.Background(), models.KindFundItem, entityID))
	assert.ErrorIs(t, backend.Delete(context.Background(), models.KindFundItem, entityID), sentinel.ErrNotFound)
}
