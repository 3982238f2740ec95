package statestore_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/vms-coordinator/internal/statestore"
)

func TestPostgres_GetStreamReturnsNilWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT stream_id, uri, codec, container, state, node_id, lease_id, output_dir").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(nil))

	store := statestore.NewPostgres(db)
	rec, err := store.GetStream(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetStreamParsesRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"stream_id", "uri", "codec", "container", "state", "node_id", "lease_id",
		"output_dir", "last_error", "started_at", "stopped_at",
	}).AddRow("s1", "rtsp://cam", "h264", "ts", "running", "node-a", "lease-1", nil, nil, nil, nil)

	mock.ExpectQuery("SELECT stream_id, uri, codec, container, state, node_id, lease_id, output_dir").
		WithArgs("s1").
		WillReturnRows(rows)

	store := statestore.NewPostgres(db)
	rec, err := store.GetStream(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, statestore.StreamRunning, rec.State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateAiTaskStatsIssuesIncrement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE ai_tasks").
		WithArgs(int64(10), int64(2), int64(500), "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := statestore.NewPostgres(db)
	err = store.UpdateAiTaskStats(context.Background(), "t1", 10, 2, 500)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
