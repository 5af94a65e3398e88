package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func createTestEntity(t *testing.T, st *SQLiteStore) model.TrackedEntity {
	t.Helper()
	entity, err := st.CreateEntity(context.Background(), model.TrackedEntity{
		Name:      "Acme Plumbing",
		SourceURL: "https://acme.example.com",
		Category:  "plumbing",
		Location:  "Springfield",
		Tier:      model.TierStandard,
	})
	require.NoError(t, err)
	return *entity
}

func TestSQLiteEntityLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	created := createTestEntity(t, st)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.EntityStatusPending, created.Status, "status defaults to pending")

	got, err := st.GetEntity(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, model.TierStandard, got.Tier)
	assert.Nil(t, got.NextRunAt)

	require.NoError(t, st.UpdateEntityStatus(ctx, created.ID, model.EntityStatusAnalyzed))
	got, err = st.GetEntity(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntityStatusAnalyzed, got.Status)

	next := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	require.NoError(t, st.UpdateEntitySchedule(ctx, created.ID, &next))
	got, err = st.GetEntity(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextRunAt)
	assert.WithinDuration(t, next, *got.NextRunAt, time.Second)

	require.NoError(t, st.SoftDeleteEntity(ctx, created.ID))
	_, err = st.GetEntity(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound, "soft-deleted entities are invisible")
}

func TestSQLiteEntityNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.GetEntity(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.UpdateEntityStatus(ctx, "missing", model.EntityStatusAnalyzed), ErrNotFound)
	assert.ErrorIs(t, st.UpdateEntitySchedule(ctx, "missing", nil), ErrNotFound)
	assert.ErrorIs(t, st.SoftDeleteEntity(ctx, "missing"), ErrNotFound)
}

func TestSQLiteListDueEntities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due, err := st.CreateEntity(ctx, model.TrackedEntity{
		Name: "Due", SourceURL: "https://due.example.com", AutoRefresh: true, NextRunAt: &past,
	})
	require.NoError(t, err)

	_, err = st.CreateEntity(ctx, model.TrackedEntity{
		Name: "Not yet", SourceURL: "https://later.example.com", AutoRefresh: true, NextRunAt: &future,
	})
	require.NoError(t, err)

	_, err = st.CreateEntity(ctx, model.TrackedEntity{
		Name: "Manual", SourceURL: "https://manual.example.com", NextRunAt: &past,
	})
	require.NoError(t, err)

	deleted, err := st.CreateEntity(ctx, model.TrackedEntity{
		Name: "Deleted", SourceURL: "https://gone.example.com", AutoRefresh: true, NextRunAt: &past,
	})
	require.NoError(t, err)
	require.NoError(t, st.SoftDeleteEntity(ctx, deleted.ID))

	entities, err := st.ListDueEntities(ctx, now)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, due.ID, entities[0].ID)
}

func TestSQLiteJobLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	entity := createTestEntity(t, st)

	none, err := st.LatestJob(ctx, entity.ID)
	require.NoError(t, err)
	assert.Nil(t, none, "no job is nil, not an error")

	job, err := st.CreateJob(ctx, model.ExtractionJob{
		EntityID: entity.ID,
		Status:   model.JobStatusQueued,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.False(t, job.StartedAt.IsZero())

	active, err := st.ActiveJob(ctx, entity.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, job.ID, active.ID)

	completed := time.Now().UTC()
	job.Status = model.JobStatusCompleted
	job.Progress = 100
	job.PagesFound = 7
	job.PagesProcessed = 6
	job.CompletedAt = &completed
	require.NoError(t, st.UpdateJob(ctx, *job))

	active, err = st.ActiveJob(ctx, entity.ID)
	require.NoError(t, err)
	assert.Nil(t, active, "completed jobs are not active")

	latest, err := st.LatestJob(ctx, entity.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, model.JobStatusCompleted, latest.Status)
	assert.Equal(t, 100.0, latest.Progress)
	assert.Equal(t, 7, latest.PagesFound)
	require.NotNil(t, latest.CompletedAt)
}

func TestSQLiteLatestJobOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	entity := createTestEntity(t, st)

	old := time.Now().UTC().Add(-time.Hour)
	_, err := st.CreateJob(ctx, model.ExtractionJob{
		EntityID: entity.ID, Status: model.JobStatusFailed, StartedAt: old, Error: "old failure",
	})
	require.NoError(t, err)

	newer, err := st.CreateJob(ctx, model.ExtractionJob{
		EntityID: entity.ID, Status: model.JobStatusCompleted,
	})
	require.NoError(t, err)

	latest, err := st.LatestJob(ctx, entity.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.ID, latest.ID)
}

func TestSQLiteAnalysisHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	entity := createTestEntity(t, st)

	none, err := st.LatestAnalysis(ctx, entity.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	pos := 2.5
	rank := 1
	first, err := st.CreateAnalysis(ctx, model.VisibilityAnalysis{
		EntityID:        entity.ID,
		VisibilityScore: 40,
		MentionRate:     30,
		SentimentScore:  0.6,
		AccuracyScore:   0.8,
		AvgPosition:     &pos,
		Observations: []model.ModelObservation{
			{Model: "gpt-4o", Mentioned: true, Sentiment: model.SentimentPositive, Confidence: 0.9, Position: &rank},
		},
		Leaderboard: &model.LeaderboardInput{
			Target:       model.TargetObservation{Name: entity.Name, MentionCount: 3},
			Competitors:  []model.CompetitorObservation{{Name: "Rival", MentionCount: 5}},
			TotalQueries: 10,
		},
		GeneratedAt: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := st.CreateAnalysis(ctx, model.VisibilityAnalysis{
		EntityID:        entity.ID,
		VisibilityScore: 55,
		GeneratedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)

	latest, err := st.LatestAnalysis(ctx, entity.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	analyses, err := st.ListAnalyses(ctx, entity.ID, 10)
	require.NoError(t, err)
	require.Len(t, analyses, 2)
	assert.Equal(t, second.ID, analyses[0].ID, "newest first")

	// Nested JSON survives the round trip.
	stored := analyses[1]
	require.Len(t, stored.Observations, 1)
	assert.Equal(t, "gpt-4o", stored.Observations[0].Model)
	assert.Equal(t, 0.9, stored.Observations[0].Confidence)
	require.NotNil(t, stored.Leaderboard)
	assert.Equal(t, 10, stored.Leaderboard.TotalQueries)
	require.Len(t, stored.Leaderboard.Competitors, 1)
	require.NotNil(t, stored.AvgPosition)
	assert.Equal(t, 2.5, *stored.AvgPosition)

	limited, err := st.ListAnalyses(ctx, entity.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
