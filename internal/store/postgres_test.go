package store

import (
	"context"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresGetN(t *testing.T) {
	s, mock := newMockStore(t)

	// Empty result set surfaces as pgx.ErrNoRows, which maps to the default.
	mock.ExpectQuery(`SELECT value::int FROM settings`).
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	n, err := s.GetN(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultN, n)
	require.NoError(t, mock.ExpectationsWereMet())

	s2, mock2 := newMockStore(t)
	mock2.ExpectQuery(`SELECT value::int FROM settings`).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(3))

	n, err = s2.GetN(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock2.ExpectationsWereMet())
}

func TestPostgresFailStatusTruncates(t *testing.T) {
	s, mock := newMockStore(t)

	long := strings.Repeat("e", 1000)
	mock.ExpectExec(`UPDATE processing_status SET error_message`).
		WithArgs(long[:MaxErrorLength], "doc1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailStatus(context.Background(), "doc1", long))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnqueueDedupHit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM queue_messages`).
		WithArgs(DocumentQueue, "body", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("existing-id"))

	id, err := s.Enqueue(context.Background(), DocumentQueue, "ingestion", "body")
	require.NoError(t, err)
	assert.Equal(t, "existing-id", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetN(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO settings`).
		WithArgs(5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetN(context.Background(), 5))
	require.NoError(t, mock.ExpectationsWereMet())
}
