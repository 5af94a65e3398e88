package insight

import (
	"math"
	"sort"
	"strings"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

// TrendDirection compares an analysis to the previous one.
type TrendDirection string

const (
	TrendUp      TrendDirection = "up"
	TrendDown    TrendDirection = "down"
	TrendNeutral TrendDirection = "neutral"
)

// trendBand is the score delta within which the trend stays neutral.
const trendBand = 5.0

// ModelMentions is one entry of the top-models breakdown.
type ModelMentions struct {
	Model    string `json:"model"`
	Mentions int    `json:"mentions"`
}

// ObservationView is a single model observation shaped for display.
type ObservationView struct {
	Model          string                `json:"model"`
	PromptCategory string                `json:"prompt_category"`
	Mentioned      bool                  `json:"mentioned"`
	Sentiment      model.SentimentBucket `json:"sentiment"`
	Confidence     int                   `json:"confidence"` // 0-100
	Position       *int                  `json:"position,omitempty"`
	LikelyError    bool                  `json:"likely_error,omitempty"`
}

// AnalysisView is one visibility analysis shaped for display, with trend
// against the previous analysis and the leaderboard recomputed when raw
// competitive data is present.
type AnalysisView struct {
	EntityID        string                `json:"entity_id"`
	VisibilityScore int                   `json:"visibility_score"` // whole number
	MentionRate     float64               `json:"mention_rate"`
	Sentiment       model.SentimentBucket `json:"sentiment"`
	Accuracy        int                   `json:"accuracy"` // 0-100
	Trend           TrendDirection        `json:"trend"`
	TopModels       []ModelMentions       `json:"top_models"`
	Observations    []ObservationView     `json:"observations"`
	Leaderboard     *LeaderboardView      `json:"leaderboard,omitempty"`
	GeneratedAt     string                `json:"generated_at"`
}

// ComputeAnalysisView shapes an analysis for display. previous may be nil;
// the trend is neutral without it. The function degrades gracefully for
// partially-populated historical records rather than failing.
func ComputeAnalysisView(analysis model.VisibilityAnalysis, previous *model.VisibilityAnalysis) AnalysisView {
	view := AnalysisView{
		EntityID:        analysis.EntityID,
		VisibilityScore: int(math.Round(analysis.VisibilityScore)),
		MentionRate:     math.Round(analysis.MentionRate),
		Sentiment:       SentimentBucketOf(analysis.SentimentScore),
		Accuracy:        int(math.Round(analysis.AccuracyScore * 100)),
		Trend:           TrendNeutral,
		TopModels:       topModels(analysis.Observations, 3),
		Observations:    shapeObservations(analysis.Observations),
		GeneratedAt:     formatGeneratedAt(analysis),
	}

	if previous != nil {
		view.Trend = Trend(analysis.VisibilityScore, previous.VisibilityScore)
	}

	if analysis.Leaderboard != nil {
		lb := ComputeLeaderboard(*analysis.Leaderboard, "")
		view.Leaderboard = &lb
	}

	return view
}

// Trend classifies the visibility score movement. Deltas within ±trendBand
// are neutral.
func Trend(current, previous float64) TrendDirection {
	diff := current - previous
	switch {
	case diff > trendBand:
		return TrendUp
	case diff < -trendBand:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// SentimentBucketOf maps a 0-1 sentiment score to a bucket.
func SentimentBucketOf(score float64) model.SentimentBucket {
	switch {
	case score > 0.7:
		return model.SentimentPositive
	case score < 0.4:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

// topModels counts mentions per model identifier and returns the top n,
// ties broken by model name for determinism.
func topModels(observations []model.ModelObservation, n int) []ModelMentions {
	counts := make(map[string]int)
	for _, obs := range observations {
		if obs.Mentioned {
			counts[obs.Model]++
		}
	}

	result := make([]ModelMentions, 0, len(counts))
	for m, c := range counts {
		result = append(result, ModelMentions{Model: m, Mentions: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Mentions != result[j].Mentions {
			return result[i].Mentions > result[j].Mentions
		}
		return result[i].Model < result[j].Model
	})

	if len(result) > n {
		result = result[:n]
	}
	return result
}

// shapeObservations formats observations for display. An empty raw response
// paired with mentioned=false is almost always an errored model call rather
// than a genuine negative result, so it is flagged instead of counted
// against the entity.
func shapeObservations(observations []model.ModelObservation) []ObservationView {
	views := make([]ObservationView, 0, len(observations))
	for _, obs := range observations {
		views = append(views, ObservationView{
			Model:          obs.Model,
			PromptCategory: obs.PromptCategory,
			Mentioned:      obs.Mentioned,
			Sentiment:      obs.Sentiment,
			Confidence:     int(math.Round(obs.Confidence * 100)),
			Position:       obs.Position,
			LikelyError:    !obs.Mentioned && strings.TrimSpace(obs.RawResponse) == "",
		})
	}
	return views
}

// formatGeneratedAt prefers the generation timestamp, falls back to the
// creation timestamp, and reports "Unknown" when neither is usable.
func formatGeneratedAt(analysis model.VisibilityAnalysis) string {
	ts := analysis.GeneratedAt
	if ts.IsZero() {
		ts = analysis.CreatedAt
	}
	if ts.IsZero() {
		return "Unknown"
	}
	return ts.UTC().Format("2006-01-02 15:04")
}
