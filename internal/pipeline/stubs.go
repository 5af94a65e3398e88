package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

// Compile-time interface checks.
var (
	_ Extractor = (*StubExtractor)(nil)
	_ Analyzer  = (*StubAnalyzer)(nil)
	_ Assessor  = (*StubAssessor)(nil)
	_ Publisher = (*StubPublisher)(nil)
)

// Stub collaborators return canned data so the pipeline can run end to end
// without live integrations. The CLI falls back to them when no collaborator
// endpoints are configured; tests use them directly.

// StubExtractor reports a small successful crawl.
type StubExtractor struct{}

// Extract implements Extractor.
func (s *StubExtractor) Extract(_ context.Context, _ model.TrackedEntity) (ExtractionResult, error) {
	return ExtractionResult{PagesFound: 5, PagesProcessed: 4}, nil
}

// StubAnalyzer returns a plausible visibility analysis with raw leaderboard
// data, including duplicate competitor spellings so the dedup path is
// exercised.
type StubAnalyzer struct{}

// Analyze implements Analyzer.
func (s *StubAnalyzer) Analyze(_ context.Context, entity model.TrackedEntity) (*model.VisibilityAnalysis, error) {
	pos2, pos3 := 2.0, 3.5
	rank := 2
	obsPos := 1

	return &model.VisibilityAnalysis{
		EntityID:        entity.ID,
		VisibilityScore: 62,
		MentionRate:     50,
		SentimentScore:  0.72,
		AccuracyScore:   0.85,
		AvgPosition:     &pos2,
		Observations: []model.ModelObservation{
			{
				Model:          "gpt-4o",
				PromptCategory: "best " + categoryOr(entity, "local business"),
				Mentioned:      true,
				Sentiment:      model.SentimentPositive,
				Confidence:     0.9,
				Position:       &obsPos,
				RawResponse:    "Among the top providers is " + entity.Name + ", known for reliable service.",
				Tokens:         180,
			},
			{
				Model:          "claude-sonnet-4-5",
				PromptCategory: "recommended providers",
				Mentioned:      true,
				Sentiment:      model.SentimentNeutral,
				Confidence:     0.8,
				RawResponse:    entity.Name + " is one option among several in the area.",
				Tokens:         140,
			},
			{
				Model:          "gemini-2.5-pro",
				PromptCategory: "top rated",
				Mentioned:      false,
				Sentiment:      model.SentimentNeutral,
				Confidence:     0.5,
				RawResponse:    "The leading names in this space are Apex Services and Summit Group.",
				Tokens:         120,
			},
		},
		Leaderboard: &model.LeaderboardInput{
			Target: model.TargetObservation{
				Name:         entity.Name,
				Rank:         &rank,
				MentionCount: 5,
				AvgPosition:  &pos2,
			},
			Competitors: []model.CompetitorObservation{
				{Name: "Apex Services Inc", MentionCount: 4, AvgPosition: &pos2, AppearsWithTarget: 2},
				{Name: "Apex Services Inc.", MentionCount: 2, AvgPosition: &pos3, AppearsWithTarget: 1},
				{Name: "Summit Group", MentionCount: 3, AvgPosition: &pos3, AppearsWithTarget: 1},
			},
			TotalQueries: 10,
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// StubAssessor judges the entity notable with moderate confidence and
// supplies candidate claims across all tiers.
type StubAssessor struct{}

// Assess implements Assessor.
func (s *StubAssessor) Assess(_ context.Context, entity model.TrackedEntity, _ *model.VisibilityAnalysis) (model.NotabilityAssessment, []model.PropertyClaim, error) {
	refs := []model.Reference{
		{URL: "https://news.example.com/profile", Title: "Industry profile", TrustScore: 0.8},
		{URL: "https://registry.example.gov/filing", Title: "Business filing", TrustScore: 0.9},
	}
	assessment := model.NotabilityAssessment{
		IsNotable:         true,
		Confidence:        0.75,
		Reasons:           []string{"covered by independent industry press", "verified government filing"},
		SeriousReferences: 2,
		References:        refs,
	}
	claims := []model.PropertyClaim{
		{Property: "name", Value: entity.Name, References: refs[:1]},
		{Property: "website", Value: entity.SourceURL},
		{Property: "category", Value: categoryOr(entity, "services")},
		{Property: "description", Value: entity.Name + " provides " + categoryOr(entity, "professional") + " services."},
		{Property: "location", Value: entity.Location},
		{Property: "industry", Value: categoryOr(entity, "services")},
		{Property: "employees", Value: "10-50"},
		{Property: "press_mentions", Value: 2, References: refs},
	}
	return assessment, claims, nil
}

// StubPublisher pretends to persist a public record.
type StubPublisher struct{}

// Publish implements Publisher.
func (s *StubPublisher) Publish(_ context.Context, _ model.TrackedEntity, _ []model.PropertyClaim) (string, error) {
	return "record-" + uuid.New().String()[:8], nil
}

func categoryOr(entity model.TrackedEntity, fallback string) string {
	if strings.TrimSpace(entity.Category) != "" {
		return entity.Category
	}
	return fallback
}
