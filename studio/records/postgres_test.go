package records

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgres(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresEnsureSheet(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec(`INSERT INTO collections \(name,header\) VALUES \(\$1,\$2\) ON CONFLICT \(name\) DO NOTHING`).
		WithArgs("events", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.EnsureSheet(context.Background(), "events", Events.Header))
}

func TestPostgresRowsPrependsHeader(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT header FROM collections WHERE name = \$1`).
		WithArgs("content").
		WillReturnRows(sqlmock.NewRows([]string{"header"}).AddRow(`{id,title,description,content,created_by}`))
	mock.ExpectQuery(`SELECT id, cells FROM collection_rows WHERE collection = \$1 ORDER BY id`).
		WithArgs("content").
		WillReturnRows(sqlmock.NewRows([]string{"id", "cells"}).
			AddRow(10, `{1,Clay,"hand building",body,42}`).
			AddRow(11, `{2,Ink,"",body,42}`))

	rows, err := p.Rows(context.Background(), "content")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Content.Header, rows[0])
	assert.Equal(t, []string{"1", "Clay", "hand building", "body", "42"}, rows[1])
	assert.Equal(t, "", rows[2][2])
}

func TestPostgresRowsUnknownCollection(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT header FROM collections`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"header"}))

	_, err := p.Rows(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDeleteRowResolvesPosition(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT id FROM collection_rows WHERE collection = \$1 ORDER BY id LIMIT 1 OFFSET 1`).
		WithArgs("content").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(`DELETE FROM collection_rows WHERE id = \$1`).
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.DeleteRow(context.Background(), "content", 3))
	assert.ErrorIs(t, p.DeleteRow(context.Background(), "content", 1), ErrNotFound)
}

func TestPostgresUpdateCell(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT id FROM collection_rows`).
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec(`UPDATE collection_rows SET cells\[2\] = \$1 WHERE id = \$2`).
		WithArgs("de", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.UpdateCell(context.Background(), "users", 2, 2, "de"))
}

func TestPostgresSerializationFailureIsConflict(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec(`INSERT INTO collection_rows`).
		WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})

	err := p.AppendRow(context.Background(), "events", []string{"1"})
	assert.ErrorIs(t, err, ErrWriteConflict)
}
