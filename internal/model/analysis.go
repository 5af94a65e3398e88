package model

import "time"

// SentimentBucket is a coarse sentiment classification.
type SentimentBucket string

const (
	SentimentPositive SentimentBucket = "positive"
	SentimentNeutral  SentimentBucket = "neutral"
	SentimentNegative SentimentBucket = "negative"
)

// VisibilityAnalysis is one run's result of querying external language models
// about a tracked entity. Records are immutable once written; a new run
// appends a new record and history is ordered by GeneratedAt.
type VisibilityAnalysis struct {
	ID              string             `json:"id"`
	EntityID        string             `json:"entity_id"`
	VisibilityScore float64            `json:"visibility_score"` // 0-100
	MentionRate     float64            `json:"mention_rate"`     // 0-100
	SentimentScore  float64            `json:"sentiment_score"`  // 0-1
	AccuracyScore   float64            `json:"accuracy_score"`   // 0-1
	AvgPosition     *float64           `json:"avg_position,omitempty"`
	Observations    []ModelObservation `json:"observations"`
	Leaderboard     *LeaderboardInput  `json:"leaderboard,omitempty"`
	GeneratedAt     time.Time          `json:"generated_at"`
	CreatedAt       time.Time          `json:"created_at"`
}

// ModelObservation is a single model's answer within a visibility analysis.
// Observations are always nested inside an analysis, never standalone.
type ModelObservation struct {
	Model          string          `json:"model"`
	PromptCategory string          `json:"prompt_category"`
	Mentioned      bool            `json:"mentioned"`
	Sentiment      SentimentBucket `json:"sentiment"`
	Confidence     float64         `json:"confidence"` // 0-1
	Position       *int            `json:"position,omitempty"`
	RawResponse    string          `json:"raw_response,omitempty"`
	Tokens         int             `json:"tokens"`
}

// LeaderboardInput is the raw, possibly-duplicated competitive data supplied
// by the analysis collaborator. The leaderboard view is recomputed from it on
// every read; it is never persisted as its own row.
type LeaderboardInput struct {
	Target       TargetObservation       `json:"target"`
	Competitors  []CompetitorObservation `json:"competitors"`
	TotalQueries int                     `json:"total_queries"`
}

// TargetObservation holds the tracked entity's own mention statistics.
type TargetObservation struct {
	Name         string   `json:"name"`
	Rank         *int     `json:"rank,omitempty"`
	MentionCount int      `json:"mention_count"`
	AvgPosition  *float64 `json:"avg_position,omitempty"`
}

// CompetitorObservation is one raw competitor row before deduplication.
type CompetitorObservation struct {
	Name              string   `json:"name"`
	MentionCount      int      `json:"mention_count"`
	AvgPosition       *float64 `json:"avg_position,omitempty"`
	AppearsWithTarget int      `json:"appears_with_target"`
}
