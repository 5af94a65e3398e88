package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sightline-labs/visibility-cli/internal/db"
	"github.com/sightline-labs/visibility-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	source_url   TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	tier         TEXT NOT NULL DEFAULT 'basic',
	auto_refresh BOOLEAN NOT NULL DEFAULT false,
	next_run_at  TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS extraction_jobs (
	id              TEXT PRIMARY KEY,
	entity_id       TEXT NOT NULL REFERENCES entities(id),
	status          TEXT NOT NULL DEFAULT 'queued',
	progress        DOUBLE PRECISION NOT NULL DEFAULT 0,
	pages_found     INTEGER NOT NULL DEFAULT 0,
	pages_processed INTEGER NOT NULL DEFAULT 0,
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ,
	error           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS visibility_analyses (
	id               TEXT PRIMARY KEY,
	entity_id        TEXT NOT NULL REFERENCES entities(id),
	visibility_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	mention_rate     DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	accuracy_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_position     DOUBLE PRECISION,
	observations     JSONB NOT NULL DEFAULT '[]',
	leaderboard      JSONB,
	generated_at     TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_next_run ON entities(next_run_at) WHERE auto_refresh AND deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_jobs_entity_started ON extraction_jobs(entity_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_entity_generated ON visibility_analyses(entity_id, generated_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateEntity(ctx context.Context, entity model.TrackedEntity) (*model.TrackedEntity, error) {
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	if entity.Status == "" {
		entity.Status = model.EntityStatusPending
	}
	if entity.Tier == "" {
		entity.Tier = model.TierBasic
	}
	now := time.Now().UTC()
	entity.CreatedAt = now
	entity.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO entities (id, name, source_url, category, location, status, tier, auto_refresh, next_run_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entity.ID, entity.Name, entity.SourceURL, entity.Category, entity.Location,
		string(entity.Status), string(entity.Tier), entity.AutoRefresh, entity.NextRunAt,
		entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert entity")
	}
	return &entity, nil
}

const entityColumns = `id, name, source_url, category, location, status, tier, auto_refresh, next_run_at, created_at, updated_at, deleted_at`

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.TrackedEntity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1 AND deleted_at IS NULL`, id)
	entity, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get entity")
	}
	return entity, nil
}

func (s *PostgresStore) UpdateEntityStatus(ctx context.Context, id string, status model.EntityStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET status = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update entity status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateEntitySchedule(ctx context.Context, id string, nextRunAt *time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET next_run_at = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`,
		nextRunAt, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update entity schedule")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SoftDeleteEntity(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: soft delete entity")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListDueEntities(ctx context.Context, now time.Time) ([]model.TrackedEntity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE auto_refresh AND deleted_at IS NULL AND next_run_at IS NOT NULL AND next_run_at <= $1
		 ORDER BY next_run_at`, now)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list due entities")
	}
	defer rows.Close()

	var entities []model.TrackedEntity
	for rows.Next() {
		entity, scanErr := scanEntity(rows)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "postgres: scan due entity")
		}
		entities = append(entities, *entity)
	}
	return entities, eris.Wrap(rows.Err(), "postgres: list due entities")
}

func (s *PostgresStore) CreateJob(ctx context.Context, job model.ExtractionJob) (*model.ExtractionJob, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_jobs (id, entity_id, status, progress, pages_found, pages_processed, started_at, completed_at, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.EntityID, string(job.Status), job.Progress, job.PagesFound,
		job.PagesProcessed, job.StartedAt, job.CompletedAt, job.Error,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return &job, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job model.ExtractionJob) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_jobs SET status = $1, progress = $2, pages_found = $3, pages_processed = $4, completed_at = $5, error = $6 WHERE id = $7`,
		string(job.Status), job.Progress, job.PagesFound, job.PagesProcessed,
		job.CompletedAt, job.Error, job.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update job")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const jobColumns = `id, entity_id, status, progress, pages_found, pages_processed, started_at, completed_at, error`

func (s *PostgresStore) LatestJob(ctx context.Context, entityID string) (*model.ExtractionJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM extraction_jobs WHERE entity_id = $1 ORDER BY started_at DESC LIMIT 1`,
		entityID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest job")
	}
	return job, nil
}

func (s *PostgresStore) ActiveJob(ctx context.Context, entityID string) (*model.ExtractionJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM extraction_jobs WHERE entity_id = $1 AND status IN ('queued', 'running') ORDER BY started_at DESC LIMIT 1`,
		entityID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active job")
	}
	return job, nil
}

func (s *PostgresStore) CreateAnalysis(ctx context.Context, analysis model.VisibilityAnalysis) (*model.VisibilityAnalysis, error) {
	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if analysis.GeneratedAt.IsZero() {
		analysis.GeneratedAt = now
	}
	analysis.CreatedAt = now

	observations, err := json.Marshal(analysis.Observations)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal observations")
	}
	var leaderboard []byte
	if analysis.Leaderboard != nil {
		leaderboard, err = json.Marshal(analysis.Leaderboard)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal leaderboard")
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO visibility_analyses (id, entity_id, visibility_score, mention_rate, sentiment_score, accuracy_score, avg_position, observations, leaderboard, generated_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		analysis.ID, analysis.EntityID, analysis.VisibilityScore, analysis.MentionRate,
		analysis.SentimentScore, analysis.AccuracyScore, analysis.AvgPosition,
		observations, leaderboard, analysis.GeneratedAt, analysis.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert analysis")
	}
	return &analysis, nil
}

const analysisColumns = `id, entity_id, visibility_score, mention_rate, sentiment_score, accuracy_score, avg_position, observations, leaderboard, generated_at, created_at`

func (s *PostgresStore) LatestAnalysis(ctx context.Context, entityID string) (*model.VisibilityAnalysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM visibility_analyses WHERE entity_id = $1 ORDER BY generated_at DESC LIMIT 1`,
		entityID)
	analysis, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest analysis")
	}
	return analysis, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, entityID string, limit int) ([]model.VisibilityAnalysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM visibility_analyses WHERE entity_id = $1 ORDER BY generated_at DESC LIMIT $2`,
		entityID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var analyses []model.VisibilityAnalysis
	for rows.Next() {
		analysis, scanErr := scanAnalysis(rows)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "postgres: scan analysis")
		}
		analyses = append(analyses, *analysis)
	}
	return analyses, eris.Wrap(rows.Err(), "postgres: list analyses")
}

func scanEntity(row pgx.Row) (*model.TrackedEntity, error) {
	var e model.TrackedEntity
	var status, tier string
	err := row.Scan(&e.ID, &e.Name, &e.SourceURL, &e.Category, &e.Location,
		&status, &tier, &e.AutoRefresh, &e.NextRunAt, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		return nil, err
	}
	e.Status = model.EntityStatus(status)
	e.Tier = model.Tier(tier)
	return &e, nil
}

func scanJob(row pgx.Row) (*model.ExtractionJob, error) {
	var j model.ExtractionJob
	var status string
	err := row.Scan(&j.ID, &j.EntityID, &status, &j.Progress, &j.PagesFound,
		&j.PagesProcessed, &j.StartedAt, &j.CompletedAt, &j.Error)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

func scanAnalysis(row pgx.Row) (*model.VisibilityAnalysis, error) {
	var a model.VisibilityAnalysis
	var observations []byte
	var leaderboard []byte
	err := row.Scan(&a.ID, &a.EntityID, &a.VisibilityScore, &a.MentionRate,
		&a.SentimentScore, &a.AccuracyScore, &a.AvgPosition,
		&observations, &leaderboard, &a.GeneratedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(observations) > 0 {
		if err := json.Unmarshal(observations, &a.Observations); err != nil {
			return nil, eris.Wrap(err, "unmarshal observations")
		}
	}
	if len(leaderboard) > 0 {
		if err := json.Unmarshal(leaderboard, &a.Leaderboard); err != nil {
			return nil, eris.Wrap(err, "unmarshal leaderboard")
		}
	}
	return &a, nil
}
