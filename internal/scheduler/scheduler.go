// Package scheduler runs the engine's periodic work: the budget-aware dream
// retest pass and database maintenance jobs.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/aristath/dreamengine/internal/events"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	bus  *events.Bus
	log  zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]string // name -> schedule
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]string),
	}
}

// SetEventBus enables job lifecycle events
func (s *Scheduler) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 0 3 * * *"        - 03:00 every day
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		_ = s.run(job)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[job.Name()] = schedule
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.run(job)
}

// Jobs returns the registered job names with their schedules, sorted by name
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, schedule := range s.jobs {
		infos = append(infos, JobInfo{Name: name, Schedule: schedule})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// JobInfo describes a registered job
type JobInfo struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
}

func (s *Scheduler) run(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	s.bus.Emit("scheduler", &events.JobStatusData{JobName: job.Name(), Status: "started"})

	start := time.Now()
	err := job.Run()
	elapsed := float64(time.Since(start).Milliseconds())

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		s.bus.Emit("scheduler", &events.JobStatusData{JobName: job.Name(), Status: "failed", Error: err.Error(), DurationMs: elapsed})
		return err
	}

	s.log.Debug().Str("job", job.Name()).Msg("Job completed")
	s.bus.Emit("scheduler", &events.JobStatusData{JobName: job.Name(), Status: "completed", DurationMs: elapsed})
	return nil
}
