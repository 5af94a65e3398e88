package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

func TestTrend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		current  float64
		previous float64
		want     TrendDirection
	}{
		{"clear improvement", 80, 70, TrendUp},
		{"clear decline", 60, 72, TrendDown},
		{"small delta stays neutral", 75, 77, TrendNeutral},
		{"exactly at band stays neutral", 75, 70, TrendNeutral},
		{"just past band is up", 75.1, 70, TrendUp},
		{"no change", 50, 50, TrendNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Trend(tt.current, tt.previous))
		})
	}
}

func TestSentimentBucketOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  model.SentimentBucket
	}{
		{0.9, model.SentimentPositive},
		{0.71, model.SentimentPositive},
		{0.7, model.SentimentNeutral},
		{0.4, model.SentimentNeutral},
		{0.39, model.SentimentNegative},
		{0.0, model.SentimentNegative},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SentimentBucketOf(tt.score), "score %v", tt.score)
	}
}

func TestComputeAnalysisView(t *testing.T) {
	t.Parallel()

	generated := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	analysis := model.VisibilityAnalysis{
		EntityID:        "ent-1",
		VisibilityScore: 62.4,
		MentionRate:     55.6,
		SentimentScore:  0.72,
		AccuracyScore:   0.847,
		Observations: []model.ModelObservation{
			{Model: "gpt-4o", Mentioned: true, Sentiment: model.SentimentPositive, Confidence: 0.9, RawResponse: "mentioned"},
			{Model: "gpt-4o", Mentioned: true, Sentiment: model.SentimentNeutral, Confidence: 0.8, RawResponse: "mentioned again"},
			{Model: "claude-sonnet-4-5", Mentioned: true, Sentiment: model.SentimentPositive, Confidence: 0.85, RawResponse: "yes"},
			{Model: "gemini-2.5-pro", Mentioned: false, Sentiment: model.SentimentNeutral, Confidence: 0.5, RawResponse: ""},
		},
		GeneratedAt: generated,
	}

	previous := model.VisibilityAnalysis{VisibilityScore: 50}

	view := ComputeAnalysisView(analysis, &previous)

	assert.Equal(t, "ent-1", view.EntityID)
	assert.Equal(t, 62, view.VisibilityScore)
	assert.Equal(t, 56.0, view.MentionRate)
	assert.Equal(t, model.SentimentPositive, view.Sentiment)
	assert.Equal(t, 85, view.Accuracy)
	assert.Equal(t, TrendUp, view.Trend)
	assert.Equal(t, "2026-03-14 09:30", view.GeneratedAt)
	assert.Nil(t, view.Leaderboard)

	require.Len(t, view.TopModels, 2)
	assert.Equal(t, ModelMentions{Model: "gpt-4o", Mentions: 2}, view.TopModels[0])
	assert.Equal(t, ModelMentions{Model: "claude-sonnet-4-5", Mentions: 1}, view.TopModels[1])

	require.Len(t, view.Observations, 4)
	assert.Equal(t, 90, view.Observations[0].Confidence)
	assert.False(t, view.Observations[0].LikelyError)
	assert.True(t, view.Observations[3].LikelyError, "unmentioned with empty response is a likely errored call")
}

func TestComputeAnalysisViewNoPrevious(t *testing.T) {
	t.Parallel()

	view := ComputeAnalysisView(model.VisibilityAnalysis{VisibilityScore: 90}, nil)
	assert.Equal(t, TrendNeutral, view.Trend, "first analysis has no baseline")
}

func TestComputeAnalysisViewIncludesLeaderboard(t *testing.T) {
	t.Parallel()

	analysis := model.VisibilityAnalysis{
		VisibilityScore: 40,
		Leaderboard: &model.LeaderboardInput{
			Target:       model.TargetObservation{Name: "Acme", MentionCount: 4},
			Competitors:  []model.CompetitorObservation{{Name: "Rival", MentionCount: 6}},
			TotalQueries: 10,
		},
	}

	view := ComputeAnalysisView(analysis, nil)

	require.NotNil(t, view.Leaderboard)
	assert.Equal(t, "Acme", view.Leaderboard.Target.Name)
	assert.Equal(t, PositionCompetitive, view.Leaderboard.Insights.MarketPosition)
}

func TestFormatGeneratedAtFallbacks(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)

	t.Run("falls back to created_at", func(t *testing.T) {
		t.Parallel()
		view := ComputeAnalysisView(model.VisibilityAnalysis{CreatedAt: created}, nil)
		assert.Equal(t, "2026-01-02 15:04", view.GeneratedAt)
	})

	t.Run("unknown when both zero", func(t *testing.T) {
		t.Parallel()
		view := ComputeAnalysisView(model.VisibilityAnalysis{}, nil)
		assert.Equal(t, "Unknown", view.GeneratedAt)
	})
}

func TestTopModelsTiesBrokenByName(t *testing.T) {
	t.Parallel()

	obs := []model.ModelObservation{
		{Model: "zeta", Mentioned: true},
		{Model: "alpha", Mentioned: true},
		{Model: "beta", Mentioned: true},
		{Model: "delta", Mentioned: true},
	}

	top := topModels(obs, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "alpha", top[0].Model)
	assert.Equal(t, "beta", top[1].Model)
	assert.Equal(t, "delta", top[2].Model)
}
