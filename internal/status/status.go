// Package status derives the pipeline progress view for a tracked entity
// from its latest extraction job and latest visibility analysis. The
// computation is a pure read model: it takes a snapshot of already-persisted
// records, never mutates them, and is safe for any number of concurrent
// callers.
package status

import (
	"time"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

// CrawlWeight is the share of overall progress attributed to extraction.
// Analysis accounts for the rest.
const CrawlWeight = 0.5

// State is the derived pipeline state.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateExtracted  State = "extracted"
	StateAnalyzed   State = "analyzed"
	StateError      State = "error"
)

// View is the status snapshot for progress UI and polling.
type View struct {
	EntityID             string     `json:"entity_id"`
	State                State      `json:"state"`
	Progress             float64    `json:"progress"` // 0-100
	Error                string     `json:"error,omitempty"`
	IsParallelProcessing bool       `json:"is_parallel_processing,omitempty"`
	HasMultiPageData     bool       `json:"has_multi_page_data"`
	PagesFound           int        `json:"pages_found"`
	PagesProcessed       int        `json:"pages_processed"`
	EstimatedCompletion  *time.Time `json:"estimated_completion,omitempty"`
}

// Compute derives the status view. job and analysis may be nil. The state
// rules are checked in order and the first match wins, so every input maps
// to exactly one state regardless of any stale entity-level status field.
func Compute(entity model.TrackedEntity, job *model.ExtractionJob, analysis *model.VisibilityAnalysis, now time.Time) View {
	view := View{EntityID: entity.ID, State: StatePending}

	if job == nil {
		return view
	}

	view.PagesFound = job.PagesFound
	view.PagesProcessed = job.PagesProcessed
	view.HasMultiPageData = job.PagesProcessed > 1

	switch {
	case job.Status.Failed():
		view.State = StateError
		view.Progress = 0
		view.Error = job.Error

	case job.Status.Active():
		view.State = StateProcessing
		view.Progress = job.Progress * CrawlWeight
		// Analysis may already be running alongside extraction.
		view.IsParallelProcessing = true
		view.EstimatedCompletion = estimateCompletion(job, now)

	case analysis == nil:
		view.State = StateExtracted
		view.Progress = 50

	default:
		view.State = StateAnalyzed
		view.Progress = 100
	}

	return view
}

// estimateCompletion linearly extrapolates from the job's start time and
// current extraction progress to 100%. Best effort only; nil when there is
// no progress to extrapolate from.
func estimateCompletion(job *model.ExtractionJob, now time.Time) *time.Time {
	if job.Progress <= 0 || job.StartedAt.IsZero() || now.Before(job.StartedAt) {
		return nil
	}
	elapsed := now.Sub(job.StartedAt)
	total := time.Duration(float64(elapsed) / job.Progress * 100)
	eta := job.StartedAt.Add(total)
	return &eta
}
