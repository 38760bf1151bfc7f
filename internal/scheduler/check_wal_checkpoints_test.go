package scheduler

import (
	"testing"

	"github.com/aristath/dreamengine/internal/database"
	testingpkg "github.com/aristath/dreamengine/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil)
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob(map[string]*database.DB{"ledger": nil})
	job.SetLogger(zerolog.New(nil).Level(zerolog.Disabled))

	assert.NoError(t, job.Run())
}

func TestCheckWALCheckpointsJob_Run_WithDatabases(t *testing.T) {
	ledgerDB, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()

	_, err := ledgerDB.Conn().Exec(`INSERT INTO ai_evaluations
		(id, dream_id, user_id, provider, model, status, created_at)
		VALUES ('r1', 'd1', 'u1', 'openai', 'gpt-4o', 'failed', 0)`)
	assert.NoError(t, err)

	job := NewCheckWALCheckpointsJob(map[string]*database.DB{"ledger": ledgerDB})
	assert.NoError(t, job.Run())
}
