package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T, name, driver string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
		Driver:  driver,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *DB, table string) bool {
	t.Helper()
	var count int
	err := db.Conn().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestBuildConnectionString_Profiles(t *testing.T) {
	ledger := buildConnectionString("/tmp/x.db", ProfileLedger)
	assert.Contains(t, ledger, "journal_mode(WAL)")
	assert.Contains(t, ledger, "synchronous(FULL)")
	assert.Contains(t, ledger, "auto_vacuum(NONE)")

	standard := buildConnectionString("/tmp/x.db", ProfileStandard)
	assert.Contains(t, standard, "synchronous(NORMAL)")

	mattn := buildMattnConnectionString("/tmp/x.db", ProfileLedger)
	assert.Equal(t, "file:/tmp/x.db?_journal_mode=WAL&_synchronous=FULL&_auto_vacuum=NONE&_foreign_keys=1&_busy_timeout=5000&_cache_size=-64000", mattn)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(Config{Path: filepath.Join(t.TempDir(), "x.db"), Name: "x", Driver: "postgres"})
	assert.Error(t, err)
}

func TestMigrate_AppliesSchemaForBothDrivers(t *testing.T) {
	for _, driver := range []string{DriverModernc, DriverMattn} {
		t.Run(driver, func(t *testing.T) {
			db := newDB(t, NameLedger, driver, ProfileLedger)
			require.NoError(t, db.Migrate())
			// Idempotent
			require.NoError(t, db.Migrate())

			assert.True(t, tableExists(t, db, "ai_evaluations"))
			assert.Equal(t, driver, db.Driver())

			var mode string
			require.NoError(t, db.Conn().QueryRow("PRAGMA journal_mode").Scan(&mode))
			assert.Equal(t, "wal", mode)
		})
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newDB(t, "scratch", DriverModernc, ProfileCache)
	require.NoError(t, db.Migrate())
	assert.False(t, tableExists(t, db, "dreams"))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newDB(t, NameConfig, DriverModernc, ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO settings (key, value, updated_at) VALUES ('a', '1', 0)")
		require.NoError(t, err)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM settings").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newDB(t, NameConfig, DriverModernc, ProfileStandard)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("boom")
	})
	assert.ErrorContains(t, err, "panic in transaction")
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newDB(t, NameDreams, DriverModernc, ProfileStandard)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))

	status, err := db.WALCheckpoint("PASSIVE")
	require.NoError(t, err)
	assert.False(t, status.Busy)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}
