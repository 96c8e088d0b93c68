package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresCheckpointStorePut(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewCheckpointStoreWithPool(mock, "checkpoints")

	state := map[string]any{"query": "hello"}
	stateJSON, _ := json.Marshal(state)

	mock.ExpectExec("INSERT INTO checkpoints").
		WithArgs("thread-1", stateJSON, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.Put(context.Background(), "thread-1", state)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewCheckpointStoreWithPool(mock, "checkpoints")

	stateJSON, _ := json.Marshal(map[string]any{"query": "hello"})
	now := time.Now()

	rows := pgxmock.NewRows([]string{"thread_id", "state", "updated_at", "version"}).
		AddRow("thread-1", stateJSON, now, 3)

	mock.ExpectQuery("SELECT thread_id, state, updated_at, version").
		WithArgs("thread-1").
		WillReturnRows(rows)

	cp, err := s.Get(context.Background(), "thread-1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "thread-1", cp.ThreadID)
	assert.Equal(t, 3, cp.Version)
	assert.Equal(t, "hello", cp.State["query"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointStoreGetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewCheckpointStoreWithPool(mock, "checkpoints")

	mock.ExpectQuery("SELECT thread_id, state, updated_at, version").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	cp, err := s.Get(context.Background(), "missing")
	assert.NoError(t, err, "a missing thread is not an error")
	assert.Nil(t, cp)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointStoreDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewCheckpointStoreWithPool(mock, "checkpoints")

	mock.ExpectExec("DELETE FROM checkpoints").
		WithArgs("thread-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, s.Delete(context.Background(), "thread-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointStoreList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewCheckpointStoreWithPool(mock, "checkpoints")

	rows := pgxmock.NewRows([]string{"thread_id"}).
		AddRow("a").
		AddRow("b")

	mock.ExpectQuery("SELECT thread_id FROM checkpoints").
		WillReturnRows(rows)

	ids, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	assert.NoError(t, mock.ExpectationsWereMet())
}
