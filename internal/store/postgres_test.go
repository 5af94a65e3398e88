package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_GetEntity_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM entities WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetEntity(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEntity(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM entities WHERE id = \$1`).
		WithArgs("ent-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "source_url", "category", "location", "status", "tier",
			"auto_refresh", "next_run_at", "created_at", "updated_at", "deleted_at",
		}).AddRow(
			"ent-1", "Acme Plumbing", "https://acme.example.com", "plumbing", "Springfield",
			"analyzed", "premium", true, (*time.Time)(nil), now, now, (*time.Time)(nil),
		))

	entity, err := s.GetEntity(context.Background(), "ent-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", entity.Name)
	assert.Equal(t, model.EntityStatusAnalyzed, entity.Status)
	assert.Equal(t, model.TierPremium, entity.Tier)
	assert.True(t, entity.AutoRefresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateEntity_Defaults(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO entities`).
		WithArgs(pgxmock.AnyArg(), "Acme", "https://acme.example.com", "", "",
			"pending", "basic", false, (*time.Time)(nil), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entity, err := s.CreateEntity(context.Background(), model.TrackedEntity{
		Name:      "Acme",
		SourceURL: "https://acme.example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entity.ID, "ID is generated")
	assert.Equal(t, model.EntityStatusPending, entity.Status)
	assert.Equal(t, model.TierBasic, entity.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateEntityStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE entities SET status`).
		WithArgs("analyzed", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateEntityStatus(context.Background(), "missing", model.EntityStatusAnalyzed)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SoftDeleteEntity(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE entities SET deleted_at`).
		WithArgs(pgxmock.AnyArg(), "ent-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SoftDeleteEntity(context.Background(), "ent-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestJob_NoneIsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM extraction_jobs WHERE entity_id = \$1 ORDER BY started_at DESC LIMIT 1`).
		WithArgs("ent-1").
		WillReturnError(pgx.ErrNoRows)

	job, err := s.LatestJob(context.Background(), "ent-1")
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActiveJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM extraction_jobs WHERE entity_id = \$1 AND status IN`).
		WithArgs("ent-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "entity_id", "status", "progress", "pages_found", "pages_processed",
			"started_at", "completed_at", "error",
		}).AddRow(
			"job-1", "ent-1", "running", 40.0, 10, 4, started, (*time.Time)(nil), "",
		))

	job, err := s.ActiveJob(context.Background(), "ent-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.Equal(t, 40.0, job.Progress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO extraction_jobs`).
		WithArgs(pgxmock.AnyArg(), "ent-1", "queued", 0.0, 0, 0,
			pgxmock.AnyArg(), (*time.Time)(nil), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job, err := s.CreateJob(context.Background(), model.ExtractionJob{EntityID: "ent-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusQueued, job.Status, "status defaults to queued")
	assert.False(t, job.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAnalysis_MarshalsNestedData(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO visibility_analyses`).
		WithArgs(pgxmock.AnyArg(), "ent-1", 62.0, 50.0, 0.7, 0.8, (*float64)(nil),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	analysis, err := s.CreateAnalysis(context.Background(), model.VisibilityAnalysis{
		EntityID:        "ent-1",
		VisibilityScore: 62,
		MentionRate:     50,
		SentimentScore:  0.7,
		AccuracyScore:   0.8,
		Observations:    []model.ModelObservation{{Model: "gpt-4o", Mentioned: true}},
		Leaderboard: &model.LeaderboardInput{
			Target:       model.TargetObservation{Name: "Acme", MentionCount: 5},
			TotalQueries: 10,
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.ID)
	assert.False(t, analysis.GeneratedAt.IsZero(), "generated_at defaults to now")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestAnalysis_UnmarshalsNestedData(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	observations, err := json.Marshal([]model.ModelObservation{
		{Model: "gpt-4o", Mentioned: true, Sentiment: model.SentimentPositive, Confidence: 0.9},
	})
	require.NoError(t, err)
	leaderboard, err := json.Marshal(model.LeaderboardInput{
		Target:       model.TargetObservation{Name: "Acme", MentionCount: 5},
		Competitors:  []model.CompetitorObservation{{Name: "Rival", MentionCount: 3}},
		TotalQueries: 10,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM visibility_analyses WHERE entity_id = \$1 ORDER BY generated_at DESC LIMIT 1`).
		WithArgs("ent-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "entity_id", "visibility_score", "mention_rate", "sentiment_score",
			"accuracy_score", "avg_position", "observations", "leaderboard", "generated_at", "created_at",
		}).AddRow(
			"an-1", "ent-1", 62.0, 50.0, 0.7, 0.8, (*float64)(nil),
			observations, leaderboard, now, now,
		))

	analysis, err := s.LatestAnalysis(context.Background(), "ent-1")
	require.NoError(t, err)
	require.NotNil(t, analysis)
	require.Len(t, analysis.Observations, 1)
	assert.Equal(t, "gpt-4o", analysis.Observations[0].Model)
	require.NotNil(t, analysis.Leaderboard)
	assert.Equal(t, 10, analysis.Leaderboard.TotalQueries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDueEntities(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	mock.ExpectQuery(`SELECT .+ FROM entities\s+WHERE auto_refresh`).
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "source_url", "category", "location", "status", "tier",
			"auto_refresh", "next_run_at", "created_at", "updated_at", "deleted_at",
		}).AddRow(
			"ent-1", "Acme", "https://acme.example.com", "", "",
			"analyzed", "basic", true, &past, now, now, (*time.Time)(nil),
		))

	entities, err := s.ListDueEntities(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "ent-1", entities[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
