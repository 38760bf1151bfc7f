// Package events provides in-process event publication for jobs and handlers.
package events

// EventType represents different event types
type EventType string

const (
	// Retest scheduler lifecycle
	RetestStarted    EventType = "RETEST_STARTED"
	RetestCompleted  EventType = "RETEST_COMPLETED"
	RetestRejected   EventType = "RETEST_REJECTED"
	CandidateSkipped EventType = "CANDIDATE_SKIPPED"
	BudgetExhausted  EventType = "BUDGET_EXHAUSTED"

	// Per-dream evaluation outcomes
	EvaluationCompleted EventType = "EVALUATION_COMPLETED"
	EvaluationFailed    EventType = "EVALUATION_FAILED"

	DreamCreated    EventType = "DREAM_CREATED"
	SettingsChanged EventType = "SETTINGS_CHANGED"
	BackupCompleted EventType = "BACKUP_COMPLETED"

	// Cron job lifecycle
	JobStarted   EventType = "JOB_STARTED"
	JobCompleted EventType = "JOB_COMPLETED"
	JobFailed    EventType = "JOB_FAILED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)
