package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/dreamengine/internal/events"
	"github.com/rs/zerolog"
)

// BackupJob uploads a fresh archive and rotates old ones
type BackupJob struct {
	service       *S3BackupService
	retentionDays int
	timeout       time.Duration
	bus           *events.Bus
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *S3BackupService, retentionDays int, bus *events.Bus) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		timeout:       30 * time.Minute,
		bus:           bus,
		log:           zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *BackupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup. A rotation failure is logged but does not fail
// the job once the upload succeeded.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	info, err := j.service.CreateAndUploadBackup(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Backup failed")
		return fmt.Errorf("backup failed: %w", err)
	}

	deleted, err := j.service.RotateOldBackups(ctx, j.retentionDays)
	if err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.bus.Emit("reliability", &events.BackupCompletedData{
		Key:       info.Filename,
		SizeBytes: info.SizeBytes,
		Deleted:   deleted,
	})
	return nil
}
