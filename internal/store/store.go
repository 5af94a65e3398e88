// Package store persists tracked entities, extraction jobs, and the
// append-only visibility analysis history. Two backends are provided:
// Postgres (pgx) for the hosted service and SQLite (modernc, no CGO) for
// local CLI use.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

// ErrNotFound is returned when a tracked entity does not exist. Missing jobs
// and analyses are not errors: those lookups return nil so status derivation
// can degrade gracefully.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the visibility pipeline.
type Store interface {
	// Entities. Soft delete only; history must stay attributable.
	CreateEntity(ctx context.Context, entity model.TrackedEntity) (*model.TrackedEntity, error)
	GetEntity(ctx context.Context, id string) (*model.TrackedEntity, error)
	UpdateEntityStatus(ctx context.Context, id string, status model.EntityStatus) error
	UpdateEntitySchedule(ctx context.Context, id string, nextRunAt *time.Time) error
	SoftDeleteEntity(ctx context.Context, id string) error
	ListDueEntities(ctx context.Context, now time.Time) ([]model.TrackedEntity, error)

	// Extraction jobs. One sequence per entity; LatestJob and ActiveJob
	// return nil (not an error) when no matching job exists.
	CreateJob(ctx context.Context, job model.ExtractionJob) (*model.ExtractionJob, error)
	UpdateJob(ctx context.Context, job model.ExtractionJob) error
	LatestJob(ctx context.Context, entityID string) (*model.ExtractionJob, error)
	ActiveJob(ctx context.Context, entityID string) (*model.ExtractionJob, error)

	// Analyses. Append-only; ListAnalyses caps retrieval at the store
	// boundary so view computation stays independent of history size.
	CreateAnalysis(ctx context.Context, analysis model.VisibilityAnalysis) (*model.VisibilityAnalysis, error)
	LatestAnalysis(ctx context.Context, entityID string) (*model.VisibilityAnalysis, error)
	ListAnalyses(ctx context.Context, entityID string, limit int) ([]model.VisibilityAnalysis, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
