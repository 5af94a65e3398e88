// Package pipeline orchestrates the extraction → analysis → publication
// pipeline for tracked entities. The interesting logic lives in the pure view
// packages (insight, status, publish); this glue defines calling order,
// idempotency, and the retry/timeout boundaries around collaborator calls.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sightline-labs/visibility-cli/internal/config"
	"github.com/sightline-labs/visibility-cli/internal/insight"
	"github.com/sightline-labs/visibility-cli/internal/model"
	"github.com/sightline-labs/visibility-cli/internal/publish"
	"github.com/sightline-labs/visibility-cli/internal/resilience"
	"github.com/sightline-labs/visibility-cli/internal/status"
	"github.com/sightline-labs/visibility-cli/internal/store"
)

// Orchestrator wires the collaborators to the store and the pure view
// computations.
type Orchestrator struct {
	cfg       *config.Config
	store     store.Store
	extractor Extractor
	analyzer  Analyzer
	assessor  Assessor
	publisher Publisher
	limiter   *rate.Limiter
	retry     resilience.Policy
}

// New creates an Orchestrator with all dependencies.
func New(cfg *config.Config, st store.Store, ex Extractor, an Analyzer, as Assessor, pub Publisher) *Orchestrator {
	perMin := cfg.Publish.RatePerMinute
	if perMin <= 0 {
		perMin = 30
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		extractor: ex,
		analyzer:  an,
		assessor:  as,
		publisher: pub,
		limiter:   rate.NewLimiter(rate.Limit(perMin/60), 1),
		retry:     resilience.DefaultPolicy(),
	}
}

// Run executes extraction and analysis for an entity. The two stages run
// concurrently; a stage failure does not abort the other. At most one
// extraction job may be in flight per entity: triggering while a job is
// queued or running returns that job unchanged.
func (o *Orchestrator) Run(ctx context.Context, entityID string) (*model.ExtractionJob, error) {
	entity, err := o.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load entity")
	}

	log := zap.L().With(zap.String("entity", entity.ID), zap.String("name", entity.Name))

	if active, activeErr := o.store.ActiveJob(ctx, entityID); activeErr != nil {
		return nil, eris.Wrap(activeErr, "pipeline: check active job")
	} else if active != nil {
		log.Info("pipeline: run already in flight, skipping trigger",
			zap.String("job", active.ID),
			zap.String("status", string(active.Status)),
		)
		return active, nil
	}

	job, err := o.store.CreateJob(ctx, model.ExtractionJob{
		EntityID: entityID,
		Status:   model.JobStatusQueued,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create job")
	}

	if err := o.store.UpdateEntityStatus(ctx, entityID, model.EntityStatusProcessing); err != nil {
		log.Warn("pipeline: failed to mark entity processing", zap.Error(err))
	}

	log.Info("pipeline: starting run", zap.String("job", job.ID))

	// Extraction and analysis are independent; track errors per stage so
	// one failing does not cancel the other.
	var extractErr, analyzeErr error

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		extractErr = o.runExtraction(gCtx, *entity, job)
		return nil
	})

	g.Go(func() error {
		analyzeErr = o.runAnalysis(gCtx, *entity)
		return nil
	})

	_ = g.Wait()

	if extractErr != nil {
		log.Error("pipeline: extraction failed", zap.Error(extractErr))
	}
	if analyzeErr != nil {
		log.Error("pipeline: analysis failed", zap.Error(analyzeErr))
	}

	// Derive the entity's lifecycle status from the records just written,
	// not from what this function thinks happened.
	finalJob, err := o.store.LatestJob(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reload job")
	}
	analysis, err := o.store.LatestAnalysis(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reload analysis")
	}

	view := status.Compute(*entity, finalJob, analysis, time.Now().UTC())
	if err := o.store.UpdateEntityStatus(ctx, entityID, model.EntityStatus(view.State)); err != nil {
		log.Warn("pipeline: failed to update entity status", zap.Error(err))
	}

	o.scheduleNextRun(ctx, *entity, finalJob, log)

	log.Info("pipeline: run finished",
		zap.String("state", string(view.State)),
		zap.Float64("progress", view.Progress),
	)
	return finalJob, nil
}

// runExtraction drives the job record through running to a terminal state.
// Timeouts mark the job failed so status polling reports an error instead of
// hanging in processing.
func (o *Orchestrator) runExtraction(ctx context.Context, entity model.TrackedEntity, job *model.ExtractionJob) error {
	job.Status = model.JobStatusRunning
	job.StartedAt = time.Now().UTC()
	if err := o.store.UpdateJob(ctx, *job); err != nil {
		return eris.Wrap(err, "pipeline: mark job running")
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.ExtractionTimeout())
	defer cancel()

	result, err := resilience.Do(runCtx, o.retry, "extract", func(ctx context.Context) (ExtractionResult, error) {
		return o.extractor.Extract(ctx, entity)
	})

	now := time.Now().UTC()
	job.CompletedAt = &now
	if err != nil {
		job.Status = model.JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = model.JobStatusCompleted
		job.Progress = 100
		job.PagesFound = result.PagesFound
		job.PagesProcessed = result.PagesProcessed
	}

	if updateErr := o.store.UpdateJob(ctx, *job); updateErr != nil {
		return eris.Wrap(updateErr, "pipeline: finalize job")
	}
	return eris.Wrap(err, "pipeline: extract")
}

// runAnalysis obtains a visibility analysis and appends it to history.
func (o *Orchestrator) runAnalysis(ctx context.Context, entity model.TrackedEntity) error {
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.AnalysisTimeout())
	defer cancel()

	analysis, err := resilience.Do(runCtx, o.retry, "analyze", func(ctx context.Context) (*model.VisibilityAnalysis, error) {
		return o.analyzer.Analyze(ctx, entity)
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: analyze")
	}
	if analysis == nil {
		return eris.New("pipeline: analyzer returned no analysis")
	}

	analysis.EntityID = entity.ID
	if analysis.GeneratedAt.IsZero() {
		analysis.GeneratedAt = time.Now().UTC()
	}
	if _, err := o.store.CreateAnalysis(ctx, *analysis); err != nil {
		return eris.Wrap(err, "pipeline: persist analysis")
	}
	return nil
}

// scheduleNextRun sets the next automated run relative to the completion
// time of this one. Drift across runs is fine; the interval is what matters.
func (o *Orchestrator) scheduleNextRun(ctx context.Context, entity model.TrackedEntity, job *model.ExtractionJob, log *zap.Logger) {
	if !entity.AutoRefresh {
		return
	}
	completed := time.Now().UTC()
	if job != nil && job.CompletedAt != nil {
		completed = *job.CompletedAt
	}
	next := completed.Add(o.cfg.Pipeline.RecurrenceInterval())
	if err := o.store.UpdateEntitySchedule(ctx, entity.ID, &next); err != nil {
		log.Warn("pipeline: failed to schedule next run", zap.Error(err))
		return
	}
	log.Info("pipeline: next run scheduled", zap.Time("next_run_at", next))
}

// PublishResult pairs the gate's assessment with the published record ID
// when publication went through.
type PublishResult struct {
	Assessment model.PublishAssessment `json:"assessment"`
	RecordID   string                  `json:"record_id,omitempty"`
}

// Publish runs the notability assessment, applies the eligibility gate, and
// publishes the filtered property set when the gate allows. It is strictly
// sequential and requires both extraction and analysis to have completed.
func (o *Orchestrator) Publish(ctx context.Context, entityID string) (*PublishResult, error) {
	entity, err := o.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load entity")
	}

	job, err := o.store.LatestJob(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load job")
	}
	analysis, err := o.store.LatestAnalysis(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load analysis")
	}
	if job == nil || job.Status != model.JobStatusCompleted || analysis == nil {
		return nil, eris.New("pipeline: publish requires completed extraction and analysis")
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.PublishTimeout())
	defer cancel()

	assessment, claims, err := o.assessor.Assess(runCtx, *entity, analysis)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: assess notability")
	}

	enrichment, err := o.enrichmentLevel(ctx, entityID)
	if err != nil {
		return nil, err
	}

	result := publish.AssessEligibility(assessment, claims, entity.Tier, enrichment, o.gateOptions())
	out := &PublishResult{Assessment: result}
	if !result.CanPublish {
		zap.L().Info("pipeline: publish gate closed",
			zap.String("entity", entityID),
			zap.String("recommendation", result.Recommendation),
		)
		return out, nil
	}

	if err := o.limiter.Wait(runCtx); err != nil {
		return nil, eris.Wrap(err, "pipeline: publish rate limit")
	}

	recordID, err := resilience.Do(runCtx, o.retry, "publish", func(ctx context.Context) (string, error) {
		return o.publisher.Publish(ctx, *entity, result.Properties)
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: publish record")
	}

	out.RecordID = recordID
	zap.L().Info("pipeline: record published",
		zap.String("entity", entityID),
		zap.String("record", recordID),
		zap.Int("properties", len(result.Properties)),
	)
	return out, nil
}

// enrichmentLevel is how many analyses the entity has accumulated; each run
// enriches the record a little further.
func (o *Orchestrator) enrichmentLevel(ctx context.Context, entityID string) (int, error) {
	analyses, err := o.store.ListAnalyses(ctx, entityID, o.historyLimit())
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: count analyses")
	}
	return len(analyses), nil
}

func (o *Orchestrator) gateOptions() publish.Options {
	return publish.Options{
		SandboxMode:        o.cfg.Publish.SandboxMode,
		LenientThreshold:   o.cfg.Publish.LenientThreshold,
		ReferenceThreshold: o.cfg.Publish.ReferenceThreshold,
		ReviewThreshold:    o.cfg.Publish.ReviewThreshold,
	}
}

func (o *Orchestrator) historyLimit() int {
	if o.cfg.Pipeline.HistoryLimit > 0 {
		return o.cfg.Pipeline.HistoryLimit
	}
	return 20
}

// Status computes the progress snapshot for an entity.
func (o *Orchestrator) Status(ctx context.Context, entityID string) (*status.View, error) {
	entity, err := o.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load entity")
	}
	job, err := o.store.LatestJob(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load job")
	}
	analysis, err := o.store.LatestAnalysis(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load analysis")
	}
	view := status.Compute(*entity, job, analysis, time.Now().UTC())
	return &view, nil
}

// Leaderboard computes the competitive leaderboard from the latest analysis.
func (o *Orchestrator) Leaderboard(ctx context.Context, entityID string) (*insight.LeaderboardView, error) {
	entity, err := o.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load entity")
	}
	analysis, err := o.store.LatestAnalysis(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load analysis")
	}
	if analysis == nil || analysis.Leaderboard == nil {
		return nil, eris.New("pipeline: no leaderboard data yet")
	}
	view := insight.ComputeLeaderboard(*analysis.Leaderboard, entity.Name)
	return &view, nil
}

// AnalysisView shapes the latest analysis for display, with trend against
// the one before it.
func (o *Orchestrator) AnalysisView(ctx context.Context, entityID string) (*insight.AnalysisView, error) {
	if _, err := o.store.GetEntity(ctx, entityID); err != nil {
		return nil, eris.Wrap(err, "pipeline: load entity")
	}
	analyses, err := o.store.ListAnalyses(ctx, entityID, 2)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load analyses")
	}
	if len(analyses) == 0 {
		return nil, eris.New("pipeline: no analysis yet")
	}
	var previous *model.VisibilityAnalysis
	if len(analyses) > 1 {
		previous = &analyses[1]
	}
	view := insight.ComputeAnalysisView(analyses[0], previous)
	return &view, nil
}

// History returns the capped analysis history, newest first.
func (o *Orchestrator) History(ctx context.Context, entityID string, limit int) ([]model.VisibilityAnalysis, error) {
	if _, err := o.store.GetEntity(ctx, entityID); err != nil {
		return nil, eris.Wrap(err, "pipeline: load entity")
	}
	if limit <= 0 {
		limit = o.historyLimit()
	}
	return o.store.ListAnalyses(ctx, entityID, limit)
}
