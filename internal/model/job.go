package model

import "time"

// JobStatus represents the state of an extraction job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusError     JobStatus = "error"
)

// Active reports whether the job is queued or currently running. The
// orchestrator refuses to start a new job for an entity while one is active.
func (s JobStatus) Active() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// Failed reports whether the job ended in a failure state.
func (s JobStatus) Failed() bool {
	return s == JobStatusFailed || s == JobStatusError
}

// Terminal reports whether the job has finished, successfully or not.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s.Failed()
}

// ExtractionJob is one background run that gathers facts about a tracked
// entity from its web source. An entity accumulates a sequence of jobs over
// time; only the latest one drives status derivation. Job records are written
// by the extraction collaborator and read-only to the view computations.
type ExtractionJob struct {
	ID             string     `json:"id"`
	EntityID       string     `json:"entity_id"`
	Status         JobStatus  `json:"status"`
	Progress       float64    `json:"progress"` // 0-100
	PagesFound     int        `json:"pages_found"`
	PagesProcessed int        `json:"pages_processed"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}
