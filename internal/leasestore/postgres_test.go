package leasestore_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/vms-coordinator/internal/leasestore"
)

func TestPostgres_AcquireGrantsWhenRowAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT lease_id, resource_id, holder_id, kind, expires_at_epoch_secs, version").
		WithArgs("r1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO leases").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := leasestore.NewPostgres(db, 30, 120)
	resp, err := store.Acquire(context.Background(), leasestore.AcquireRequest{
		ResourceID: "r1", HolderID: "node-a", Kind: leasestore.KindStream, TTLSecs: 30,
	})
	require.NoError(t, err)
	assert.True(t, resp.Granted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AcquireSameHolderReusesLeaseID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"lease_id", "resource_id", "holder_id", "kind", "expires_at_epoch_secs", "version"}).
		AddRow("lease-1", "r1", "node-a", "stream", 9999999999, 1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT lease_id, resource_id, holder_id, kind, expires_at_epoch_secs, version").
		WithArgs("r1").
		WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO leases").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := leasestore.NewPostgres(db, 30, 120)
	resp, err := store.Acquire(context.Background(), leasestore.AcquireRequest{
		ResourceID: "r1", HolderID: "node-a", Kind: leasestore.KindStream, TTLSecs: 30,
	})
	require.NoError(t, err)
	assert.True(t, resp.Granted)
	assert.Equal(t, "lease-1", resp.Record.LeaseID, "same-holder re-acquire must reuse the existing lease_id")
	assert.Equal(t, int64(2), resp.Record.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReleaseReportsWhetherRowExisted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"resource_id", "kind"}).AddRow("r1", "stream")
	mock.ExpectQuery("DELETE FROM leases WHERE lease_id").
		WithArgs("lease-1").
		WillReturnRows(rows)

	store := leasestore.NewPostgres(db, 30, 120)
	resp, err := store.Release(context.Background(), leasestore.ReleaseRequest{LeaseID: "lease-1"})
	require.NoError(t, err)
	assert.True(t, resp.Released)
	assert.Equal(t, "r1", resp.ResourceID)
	assert.Equal(t, leasestore.KindStream, resp.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReleaseReturnsFalseWhenLeaseUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("DELETE FROM leases WHERE lease_id").
		WithArgs("lease-missing").
		WillReturnError(sql.ErrNoRows)

	store := leasestore.NewPostgres(db, 30, 120)
	resp, err := store.Release(context.Background(), leasestore.ReleaseRequest{LeaseID: "lease-missing"})
	require.NoError(t, err)
	assert.False(t, resp.Released)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RenewReturnsFalseWhenNoRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("UPDATE leases SET expires_at_epoch_secs").
		WillReturnError(sql.ErrNoRows)

	store := leasestore.NewPostgres(db, 30, 120)
	resp, err := store.Renew(context.Background(), leasestore.RenewRequest{LeaseID: "lease-1", TTLSecs: 30})
	require.NoError(t, err)
	assert.False(t, resp.Renewed)
	require.NoError(t, mock.ExpectationsWereMet())
}
