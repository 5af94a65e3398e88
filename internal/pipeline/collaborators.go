package pipeline

import (
	"context"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

// The pipeline's collaborators are opaque beyond their output shape: the
// orchestrator owns the job/analysis records and stamps them itself, so a
// collaborator can never be confused for another by field sniffing.

// ExtractionResult is what the extraction collaborator reports back after
// crawling the entity's web source.
type ExtractionResult struct {
	PagesFound     int
	PagesProcessed int
}

// Extractor gathers facts about an entity from its web source.
type Extractor interface {
	Extract(ctx context.Context, entity model.TrackedEntity) (ExtractionResult, error)
}

// Analyzer queries external knowledge models about an entity and returns a
// visibility analysis. The orchestrator stamps entity ID and generation
// timestamp before persisting.
type Analyzer interface {
	Analyze(ctx context.Context, entity model.TrackedEntity) (*model.VisibilityAnalysis, error)
}

// Assessor evaluates whether an entity is notable enough for publication and
// supplies the candidate property claims.
type Assessor interface {
	Assess(ctx context.Context, entity model.TrackedEntity, analysis *model.VisibilityAnalysis) (model.NotabilityAssessment, []model.PropertyClaim, error)
}

// Publisher writes the filtered property set to the public knowledge base
// and returns the persisted record identifier.
type Publisher interface {
	Publish(ctx context.Context, entity model.TrackedEntity, properties []model.PropertyClaim) (string, error)
}
