package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RetestStartedData contains data for RetestStarted events
type RetestStartedData struct {
	Candidates  int     `json:"candidates"`
	SpentToday  float64 `json:"spent_today"`
	DailyBudget float64 `json:"daily_budget"`
}

// EventType returns the event type for RetestStartedData
func (d *RetestStartedData) EventType() EventType {
	return RetestStarted
}

// RetestCompletedData contains data for RetestCompleted events
type RetestCompletedData struct {
	Processed       int     `json:"processed"`
	Skipped         int     `json:"skipped"`
	Failed          int     `json:"failed"`
	TotalCost       float64 `json:"total_cost"`
	BudgetExhausted bool    `json:"budget_exhausted"`
	DurationMs      int64   `json:"duration_ms"`
}

// EventType returns the event type for RetestCompletedData
func (d *RetestCompletedData) EventType() EventType {
	return RetestCompleted
}

// RetestRejectedData contains data for RetestRejected events
type RetestRejectedData struct {
	Reason string `json:"reason"`
}

// EventType returns the event type for RetestRejectedData
func (d *RetestRejectedData) EventType() EventType {
	return RetestRejected
}

// CandidateSkippedData contains data for CandidateSkipped events
type CandidateSkippedData struct {
	DreamID       string  `json:"dream_id"`
	Priority      string  `json:"priority"`
	Reason        string  `json:"reason"` // "budget" or "model_limit"
	EstimatedCost float64 `json:"estimated_cost"`
	Model         string  `json:"model,omitempty"`
}

// EventType returns the event type for CandidateSkippedData
func (d *CandidateSkippedData) EventType() EventType {
	return CandidateSkipped
}

// BudgetExhaustedData contains data for BudgetExhausted events
type BudgetExhaustedData struct {
	SpentToday  float64 `json:"spent_today"`
	DailyBudget float64 `json:"daily_budget"`
}

// EventType returns the event type for BudgetExhaustedData
func (d *BudgetExhaustedData) EventType() EventType {
	return BudgetExhausted
}

// EvaluationData contains data for EvaluationCompleted and EvaluationFailed events
type EvaluationData struct {
	DreamID            string   `json:"dream_id"`
	Source             string   `json:"source"` // "retest" or "direct"
	Models             []string `json:"models"`
	Succeeded          int      `json:"succeeded"`
	Cost               float64  `json:"cost"`
	ImpossibilityScore *float64 `json:"impossibility_score,omitempty"`
	Error              string   `json:"error,omitempty"`
}

// EventType returns EvaluationFailed when no model succeeded
func (d *EvaluationData) EventType() EventType {
	if d.Succeeded == 0 {
		return EvaluationFailed
	}
	return EvaluationCompleted
}

// DreamCreatedData contains data for DreamCreated events
type DreamCreatedData struct {
	DreamID string `json:"dream_id"`
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
}

// EventType returns the event type for DreamCreatedData
func (d *DreamCreatedData) EventType() EventType {
	return DreamCreated
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
	Deleted   int    `json:"deleted"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// JobStatusData contains data for job lifecycle events
type JobStatusData struct {
	JobName    string  `json:"job_name"`
	Status     string  `json:"status"` // "started", "completed", "failed"
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"duration_ms,omitempty"`
}

// EventType returns the event type for JobStatusData.
// The actual event type is determined by the Status field.
func (d *JobStatusData) EventType() EventType {
	switch d.Status {
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	default:
		return JobStarted
	}
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// Event is a published event with typed data
type Event struct {
	Type      EventType `json:"type" msgpack:"type"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Module    string    `json:"module" msgpack:"module"`
	Data      EventData `json:"data" msgpack:"data"`
}

// UnmarshalJSON decodes Data into the concrete type matching Type
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		e.Data = nil
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case RetestStarted:
		eventData = &RetestStartedData{}
	case RetestCompleted:
		eventData = &RetestCompletedData{}
	case RetestRejected:
		eventData = &RetestRejectedData{}
	case CandidateSkipped:
		eventData = &CandidateSkippedData{}
	case BudgetExhausted:
		eventData = &BudgetExhaustedData{}
	case EvaluationCompleted, EvaluationFailed:
		eventData = &EvaluationData{}
	case DreamCreated:
		eventData = &DreamCreatedData{}
	case SettingsChanged:
		eventData = &SettingsChangedData{}
	case BackupCompleted:
		eventData = &BackupCompletedData{}
	case JobStarted, JobCompleted, JobFailed:
		eventData = &JobStatusData{}
	case ErrorOccurred:
		eventData = &ErrorEventData{}
	default:
		generic := &GenericEventData{Type: aux.Type}
		if err := json.Unmarshal(aux.Data, &generic.Data); err != nil {
			return err
		}
		e.Data = generic
		return nil
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON serializes only the payload map
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}
