package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local CLI
// use, where running a Postgres instance is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	source_url   TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	tier         TEXT NOT NULL DEFAULT 'basic',
	auto_refresh INTEGER NOT NULL DEFAULT 0,
	next_run_at  DATETIME,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	deleted_at   DATETIME
);

CREATE TABLE IF NOT EXISTS extraction_jobs (
	id              TEXT PRIMARY KEY,
	entity_id       TEXT NOT NULL REFERENCES entities(id),
	status          TEXT NOT NULL DEFAULT 'queued',
	progress        REAL NOT NULL DEFAULT 0,
	pages_found     INTEGER NOT NULL DEFAULT 0,
	pages_processed INTEGER NOT NULL DEFAULT 0,
	started_at      DATETIME NOT NULL,
	completed_at    DATETIME,
	error           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS visibility_analyses (
	id               TEXT PRIMARY KEY,
	entity_id        TEXT NOT NULL REFERENCES entities(id),
	visibility_score REAL NOT NULL DEFAULT 0,
	mention_rate     REAL NOT NULL DEFAULT 0,
	sentiment_score  REAL NOT NULL DEFAULT 0,
	accuracy_score   REAL NOT NULL DEFAULT 0,
	avg_position     REAL,
	observations     TEXT NOT NULL DEFAULT '[]',
	leaderboard      TEXT,
	generated_at     DATETIME NOT NULL,
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_next_run ON entities(next_run_at);
CREATE INDEX IF NOT EXISTS idx_jobs_entity_started ON extraction_jobs(entity_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_entity_generated ON visibility_analyses(entity_id, generated_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateEntity(ctx context.Context, entity model.TrackedEntity) (*model.TrackedEntity, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (id, name, source_url, category, location, status, tier, auto_refresh, next_run_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entity.ID, entity.Name, entity.SourceURL, entity.Category, entity.Location,
		string(entity.Status), string(entity.Tier), entity.AutoRefresh, entity.NextRunAt,
		entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert entity")
	}
	return &entity, nil
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.TrackedEntity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ? AND deleted_at IS NULL`, id)
	entity, err := scanEntitySQL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get entity")
	}
	return entity, nil
}

func (s *SQLiteStore) UpdateEntityStatus(ctx context.Context, id string, status model.EntityStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entity status %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) UpdateEntitySchedule(ctx context.Context, id string, nextRunAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET next_run_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		nextRunAt, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entity schedule %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) SoftDeleteEntity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: soft delete entity %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListDueEntities(ctx context.Context, now time.Time) ([]model.TrackedEntity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE auto_refresh AND deleted_at IS NULL AND next_run_at IS NOT NULL AND next_run_at <= ?
		 ORDER BY next_run_at`, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list due entities")
	}
	defer rows.Close()

	var entities []model.TrackedEntity
	for rows.Next() {
		entity, scanErr := scanEntitySQL(rows)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "sqlite: scan due entity")
		}
		entities = append(entities, *entity)
	}
	return entities, eris.Wrap(rows.Err(), "sqlite: list due entities")
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job model.ExtractionJob) (*model.ExtractionJob, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_jobs (id, entity_id, status, progress, pages_found, pages_processed, started_at, completed_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.EntityID, string(job.Status), job.Progress, job.PagesFound,
		job.PagesProcessed, job.StartedAt, job.CompletedAt, job.Error,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return &job, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job model.ExtractionJob) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET status = ?, progress = ?, pages_found = ?, pages_processed = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(job.Status), job.Progress, job.PagesFound, job.PagesProcessed,
		job.CompletedAt, job.Error, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) LatestJob(ctx context.Context, entityID string) (*model.ExtractionJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM extraction_jobs WHERE entity_id = ? ORDER BY started_at DESC LIMIT 1`,
		entityID)
	job, err := scanJobSQL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest job")
	}
	return job, nil
}

func (s *SQLiteStore) ActiveJob(ctx context.Context, entityID string) (*model.ExtractionJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM extraction_jobs WHERE entity_id = ? AND status IN ('queued', 'running') ORDER BY started_at DESC LIMIT 1`,
		entityID)
	job, err := scanJobSQL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active job")
	}
	return job, nil
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, analysis model.VisibilityAnalysis) (*model.VisibilityAnalysis, error) {
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
		return nil, eris.Wrap(err, "sqlite: marshal observations")
	}
	var leaderboard any
	if analysis.Leaderboard != nil {
		lb, lbErr := json.Marshal(analysis.Leaderboard)
		if lbErr != nil {
			return nil, eris.Wrap(lbErr, "sqlite: marshal leaderboard")
		}
		leaderboard = string(lb)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO visibility_analyses (id, entity_id, visibility_score, mention_rate, sentiment_score, accuracy_score, avg_position, observations, leaderboard, generated_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		analysis.ID, analysis.EntityID, analysis.VisibilityScore, analysis.MentionRate,
		analysis.SentimentScore, analysis.AccuracyScore, analysis.AvgPosition,
		string(observations), leaderboard, analysis.GeneratedAt, analysis.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert analysis")
	}
	return &analysis, nil
}

func (s *SQLiteStore) LatestAnalysis(ctx context.Context, entityID string) (*model.VisibilityAnalysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM visibility_analyses WHERE entity_id = ? ORDER BY generated_at DESC LIMIT 1`,
		entityID)
	analysis, err := scanAnalysisSQL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest analysis")
	}
	return analysis, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, entityID string, limit int) ([]model.VisibilityAnalysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM visibility_analyses WHERE entity_id = ? ORDER BY generated_at DESC LIMIT ?`,
		entityID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var analyses []model.VisibilityAnalysis
	for rows.Next() {
		analysis, scanErr := scanAnalysisSQL(rows)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "sqlite: scan analysis")
		}
		analyses = append(analyses, *analysis)
	}
	return analyses, eris.Wrap(rows.Err(), "sqlite: list analyses")
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntitySQL(row rowScanner) (*model.TrackedEntity, error) {
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

func scanJobSQL(row rowScanner) (*model.ExtractionJob, error) {
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

func scanAnalysisSQL(row rowScanner) (*model.VisibilityAnalysis, error) {
	var a model.VisibilityAnalysis
	var observations string
	var leaderboard sql.NullString
	err := row.Scan(&a.ID, &a.EntityID, &a.VisibilityScore, &a.MentionRate,
		&a.SentimentScore, &a.AccuracyScore, &a.AvgPosition,
		&observations, &leaderboard, &a.GeneratedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if observations != "" {
		if err := json.Unmarshal([]byte(observations), &a.Observations); err != nil {
			return nil, eris.Wrap(err, "unmarshal observations")
		}
	}
	if leaderboard.Valid && leaderboard.String != "" {
		if err := json.Unmarshal([]byte(leaderboard.String), &a.Leaderboard); err != nil {
			return nil, eris.Wrap(err, "unmarshal leaderboard")
		}
	}
	return &a, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
