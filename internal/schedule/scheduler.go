// Package schedule re-triggers the pipeline for automated entities whose
// recurrence interval has elapsed. The sweep only looks at next_run_at; the
// orchestrator's active-job check keeps a slow run from being triggered
// twice.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sightline-labs/visibility-cli/internal/store"
)

// TriggerFunc starts a pipeline run for one entity.
type TriggerFunc func(ctx context.Context, entityID string) error

// Scheduler sweeps due entities on a cron spec.
type Scheduler struct {
	store   store.Store
	trigger TriggerFunc
	cron    *cron.Cron
	spec    string
}

// New creates a Scheduler. spec is a robfig/cron spec such as "@every 1h".
func New(st store.Store, trigger TriggerFunc, spec string) *Scheduler {
	if spec == "" {
		spec = "@every 1h"
	}
	return &Scheduler{store: st, trigger: trigger, cron: cron.New(), spec: spec}
}

// Start begins sweeping in the background until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.Sweep(ctx); err != nil {
			zap.L().Error("schedule: sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return eris.Wrapf(err, "schedule: add sweep %q", s.spec)
	}
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()

	zap.L().Info("schedule: sweep started", zap.String("spec", s.spec))
	return nil
}

// Sweep runs the pipeline for every due automated entity, sequentially.
// Entities whose trigger fails stay due and are retried on the next sweep.
func (s *Scheduler) Sweep(ctx context.Context) error {
	due, err := s.store.ListDueEntities(ctx, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "schedule: list due entities")
	}
	if len(due) == 0 {
		return nil
	}

	zap.L().Info("schedule: sweeping due entities", zap.Int("count", len(due)))
	for _, entity := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.trigger(ctx, entity.ID); err != nil {
			zap.L().Error("schedule: run failed",
				zap.String("entity", entity.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
