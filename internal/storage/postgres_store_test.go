package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := func() time.Time { return time.Unix(1700000000, 0).UTC() }
	store, err := NewPostgresStoreWithPool(mock, "relay_records", now)
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS relay_records").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRecordInsertsRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	created := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO relay_records").
		WithArgs("dQw4w9WgXcQ", "Song", "Artist", int64(7), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Record(context.Background(), domain.RelayRecord{
		ItemID:     "dQw4w9WgXcQ",
		Title:      "Song",
		Author:     "Artist",
		MessageRef: 7,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRecordMapsUniqueViolation(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO relay_records").
		WithArgs("dQw4w9WgXcQ", "", "", int64(7), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Record(context.Background(), domain.RelayRecord{ItemID: "dQw4w9WgXcQ", MessageRef: 7})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRecordWrapsOtherErrors(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO relay_records").
		WithArgs("dQw4w9WgXcQ", "", "", int64(7), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := store.Record(context.Background(), domain.RelayRecord{ItemID: "dQw4w9WgXcQ", MessageRef: 7})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicate)
}

func TestPostgresStoreExists(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("dQw4w9WgXcQ").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.Exists(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGet(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	created := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT item_id, title, author, message_ref, created_at").
		WithArgs("dQw4w9WgXcQ").
		WillReturnRows(mock.NewRows([]string{"item_id", "title", "author", "message_ref", "created_at"}).
			AddRow("dQw4w9WgXcQ", "Song", "Artist", int64(9), created))

	rec, err := store.Get(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, int64(9), rec.MessageRef)
	require.Equal(t, "Song", rec.Title)
	require.True(t, rec.CreatedAt.Equal(created))
}

func TestPostgresStoreGetMissing(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT item_id").
		WithArgs("missing0000").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "missing0000")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStoreCount(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	since := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(since).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(3))

	total, err := store.Count(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, 12, total)

	today, err := store.Count(context.Background(), since)
	require.NoError(t, err)
	require.Equal(t, 3, today)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresStoreWithPool(mock, "relay; DROP TABLE x", nil)
	require.Error(t, err)

	_, err = NewPostgresStoreWithPool(nil, "relay_records", nil)
	require.Error(t, err)
}
