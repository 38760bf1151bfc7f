// Package di wires the engine's databases, repositories, services and jobs.
//
// The Container is the single source of truth for every long-lived instance
// and is handed to the HTTP server, the CLI and the cron scheduler.
package di

import (
	"errors"

	"github.com/aristath/dreamengine/internal/config"
	"github.com/aristath/dreamengine/internal/database"
	"github.com/aristath/dreamengine/internal/events"
	"github.com/aristath/dreamengine/internal/llm"
	"github.com/aristath/dreamengine/internal/modules/analytics"
	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/aristath/dreamengine/internal/modules/dreams"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
	"github.com/aristath/dreamengine/internal/modules/settings"
	"github.com/aristath/dreamengine/internal/reliability"
	"github.com/aristath/dreamengine/internal/scheduler"
	"github.com/rs/zerolog"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	DreamsDB *database.DB // Dream records
	LedgerDB *database.DB // Append-only evaluation ledger
	ConfigDB *database.DB // Runtime settings overrides

	EventBus *events.Bus

	// Repositories
	DreamRepo      *dreams.Repository
	EvaluationRepo *evaluation.Repository
	SettingsRepo   *settings.Repository

	// Services
	Providers         *llm.Registry
	EvaluationService *evaluation.Service
	CostTracker       *costs.Tracker
	AnalyticsService  *analytics.Service
	SettingsService   *settings.Service
	BackupService     *reliability.BackupService
	S3BackupService   *reliability.S3BackupService // nil when backups are disabled
	RetestScheduler   *scheduler.RetestScheduler

	// BaseJobConfig is the environment job configuration before settings
	// overrides. Reloads start from it so a reset setting reverts to env.
	BaseJobConfig config.JobConfig

	log zerolog.Logger
}

// JobInstances holds the cron jobs for manual triggering
type JobInstances struct {
	Scheduler      *scheduler.Scheduler
	Retest         *scheduler.RetestScheduler
	WALCheckpoints *scheduler.CheckWALCheckpointsJob
	CoreDatabases  *scheduler.CheckCoreDatabasesJob
	Backup         *reliability.BackupJob // nil when backups are disabled
}

// ByName returns the registered job with the given name
func (j *JobInstances) ByName(name string) (scheduler.Job, bool) {
	for _, job := range j.all() {
		if job.Name() == name {
			return job, true
		}
	}
	return nil, false
}

func (j *JobInstances) all() []scheduler.Job {
	jobs := []scheduler.Job{}
	if j.Retest != nil {
		jobs = append(jobs, j.Retest)
	}
	if j.WALCheckpoints != nil {
		jobs = append(jobs, j.WALCheckpoints)
	}
	if j.CoreDatabases != nil {
		jobs = append(jobs, j.CoreDatabases)
	}
	if j.Backup != nil {
		jobs = append(jobs, j.Backup)
	}
	return jobs
}

// Databases returns the open databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	dbs := make(map[string]*database.DB, 3)
	if c.DreamsDB != nil {
		dbs[database.NameDreams] = c.DreamsDB
	}
	if c.LedgerDB != nil {
		dbs[database.NameLedger] = c.LedgerDB
	}
	if c.ConfigDB != nil {
		dbs[database.NameConfig] = c.ConfigDB
	}
	return dbs
}

// Close closes every open database
func (c *Container) Close() error {
	var errs []error
	for _, db := range []*database.DB{c.DreamsDB, c.LedgerDB, c.ConfigDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
