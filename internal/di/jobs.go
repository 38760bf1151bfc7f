package di

import (
	"fmt"

	"github.com/aristath/dreamengine/internal/config"
	"github.com/aristath/dreamengine/internal/reliability"
	"github.com/aristath/dreamengine/internal/scheduler"
	"github.com/rs/zerolog"
)

// Maintenance schedules
const (
	walCheckpointSchedule = "0 0 * * * *"  // Every hour
	coreDatabaseSchedule  = "0 15 2 * * *" // 02:15 every day
)

// RegisterJobs creates the cron scheduler and registers every periodic job.
// The scheduler is returned stopped.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	sched.SetEventBus(container.EventBus)

	instances := &JobInstances{
		Scheduler: sched,
		Retest:    container.RetestScheduler,
	}

	if err := sched.AddJob(cfg.RetestSchedule, instances.Retest); err != nil {
		return nil, fmt.Errorf("failed to register %s job: %w", instances.Retest.Name(), err)
	}

	instances.WALCheckpoints = scheduler.NewCheckWALCheckpointsJob(container.Databases())
	instances.WALCheckpoints.SetLogger(log)
	if err := sched.AddJob(walCheckpointSchedule, instances.WALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register %s job: %w", instances.WALCheckpoints.Name(), err)
	}

	instances.CoreDatabases = scheduler.NewCheckCoreDatabasesJob(container.Databases())
	instances.CoreDatabases.SetLogger(log)
	if err := sched.AddJob(coreDatabaseSchedule, instances.CoreDatabases); err != nil {
		return nil, fmt.Errorf("failed to register %s job: %w", instances.CoreDatabases.Name(), err)
	}

	if container.S3BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.S3BackupService, cfg.Backup.RetentionDays, container.EventBus)
		instances.Backup.SetLogger(log)
		if err := sched.AddJob(cfg.Backup.Schedule, instances.Backup); err != nil {
			return nil, fmt.Errorf("failed to register %s job: %w", instances.Backup.Name(), err)
		}
	}

	log.Info().Int("jobs", len(sched.Jobs())).Msg("Jobs registered")
	return instances, nil
}
