package model

import "time"

// Derived processing states reported by the status API.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// ProcessingStatus tracks a document's progress through the ingestion
// pipeline. completed_step_count only ever increases; datetime_ended is set
// exactly once, on success or failure.
type ProcessingStatus struct {
	ID             string     `json:"id"`
	FileName       string     `json:"file_name"`
	FileType       string     `json:"file_type"`
	CompletedSteps int        `json:"completed_step_count"`
	TotalSteps     int        `json:"total_step_count"`
	StartedAt      time.Time  `json:"datetime_started"`
	EndedAt        *time.Time `json:"datetime_ended,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// Progress returns the completion percentage, rounded.
func (s ProcessingStatus) Progress() int {
	if s.TotalSteps <= 0 {
		return 0
	}
	return int(float64(s.CompletedSteps)/float64(s.TotalSteps)*100 + 0.5)
}

// Status derives the state label from the step counters.
func (s ProcessingStatus) Status() string {
	switch {
	case s.CompletedSteps >= s.TotalSteps && s.TotalSteps > 0:
		return StatusCompleted
	case s.CompletedSteps > 0:
		return StatusProcessing
	default:
		return StatusPending
	}
}
