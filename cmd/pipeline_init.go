package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sightline-labs/visibility-cli/internal/pipeline"
	"github.com/sightline-labs/visibility-cli/internal/store"
)

// pipelineEnv holds the initialized store and orchestrator shared by the
// trigger commands (track, run, publish, sweep, serve).
type pipelineEnv struct {
	Store        store.Store
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "visibility.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store and builds the orchestrator. The extraction,
// analysis, assessment, and publication collaborators run as local stubs; the
// real integrations live behind separate services and are wired in by
// deployment configuration, not by this binary. Callers should defer
// env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	zap.L().Debug("collaborators running in stub mode")

	orch := pipeline.New(cfg, st,
		&pipeline.StubExtractor{},
		&pipeline.StubAnalyzer{},
		&pipeline.StubAssessor{},
		&pipeline.StubPublisher{},
	)

	return &pipelineEnv{Store: st, Orchestrator: orch}, nil
}

// runTrigger adapts the orchestrator to the scheduler's trigger signature.
func runTrigger(env *pipelineEnv) func(ctx context.Context, entityID string) error {
	return func(ctx context.Context, entityID string) error {
		_, err := env.Orchestrator.Run(ctx, entityID)
		return err
	}
}
