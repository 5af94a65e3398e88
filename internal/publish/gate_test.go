package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

func TestAssessEligibilityDecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		assessment model.NotabilityAssessment
		opts       Options
		want       bool
	}{
		{
			name:       "notable publishes",
			assessment: model.NotabilityAssessment{IsNotable: true, Confidence: 0.1},
			want:       true,
		},
		{
			name:       "confidence alone publishes",
			assessment: model.NotabilityAssessment{Confidence: 0.3},
			want:       true,
		},
		{
			name:       "confidence just below threshold blocks",
			assessment: model.NotabilityAssessment{Confidence: 0.29},
			want:       false,
		},
		{
			name: "references rescue low confidence",
			assessment: model.NotabilityAssessment{
				Confidence: 0.2,
				References: []model.Reference{{URL: "https://example.com"}},
			},
			want: true,
		},
		{
			name: "references do not rescue very low confidence",
			assessment: model.NotabilityAssessment{
				Confidence: 0.1,
				References: []model.Reference{{URL: "https://example.com"}},
			},
			want: false,
		},
		{
			name:       "low confidence without references blocks",
			assessment: model.NotabilityAssessment{Confidence: 0.25},
			want:       false,
		},
		{
			name:       "sandbox overrides everything",
			assessment: model.NotabilityAssessment{Confidence: 0},
			opts:       Options{SandboxMode: true},
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := AssessEligibility(tt.assessment, nil, model.TierBasic, 0, tt.opts)
			assert.Equal(t, tt.want, result.CanPublish)
			assert.NotEmpty(t, result.Recommendation)
		})
	}
}

func TestAssessEligibilityRecommendations(t *testing.T) {
	t.Parallel()

	t.Run("not notable surfaces first suggestion", func(t *testing.T) {
		t.Parallel()
		result := AssessEligibility(model.NotabilityAssessment{
			Suggestions: []string{"get listed in an industry directory", "seek press coverage"},
		}, nil, model.TierBasic, 0, Options{})
		assert.Contains(t, result.Recommendation, "industry directory")
	})

	t.Run("notable but uncertain routes to review", func(t *testing.T) {
		t.Parallel()
		result := AssessEligibility(model.NotabilityAssessment{
			IsNotable:  true,
			Confidence: 0.5,
		}, nil, model.TierBasic, 0, Options{})
		assert.True(t, result.CanPublish, "review routing affects text, not the decision")
		assert.Contains(t, result.Recommendation, "manual review")
	})

	t.Run("confident and notable is ready", func(t *testing.T) {
		t.Parallel()
		result := AssessEligibility(model.NotabilityAssessment{
			IsNotable:         true,
			Confidence:        0.9,
			SeriousReferences: 4,
		}, nil, model.TierBasic, 0, Options{})
		assert.Contains(t, result.Recommendation, "Ready to publish")
		assert.Contains(t, result.Recommendation, "4 serious references")
	})
}

func TestAssessEligibilityTopReferences(t *testing.T) {
	t.Parallel()

	refs := []model.Reference{
		{URL: "https://a.example.com", TrustScore: 0.5},
		{URL: "https://b.example.com", TrustScore: 0.9},
		{URL: "https://c.example.com", TrustScore: 0.7},
		{URL: "https://d.example.com", TrustScore: 0.9},
	}

	result := AssessEligibility(model.NotabilityAssessment{
		IsNotable:  true,
		Confidence: 0.8,
		References: refs,
	}, nil, model.TierBasic, 0, Options{})

	require.Len(t, result.TopReferences, 3)
	assert.Equal(t, "https://b.example.com", result.TopReferences[0].URL, "stable sort keeps b before d on tie")
	assert.Equal(t, "https://d.example.com", result.TopReferences[1].URL)
	assert.Equal(t, "https://c.example.com", result.TopReferences[2].URL)
}

func TestFilterClaims(t *testing.T) {
	t.Parallel()

	claims := []model.PropertyClaim{
		{Property: "employees", Value: "10-50"},
		{Property: "name", Value: "Acme"},
		{Property: "name", Value: "Acme Duplicate"},
		{Property: "website", Value: "https://acme.example.com", References: []model.Reference{{URL: "https://ref.example.com"}}},
		{Property: "unknown_prop", Value: "dropped"},
	}

	filtered := FilterClaims(claims, []string{"name", "description", "website", "category"})

	require.Len(t, filtered, 2)
	assert.Equal(t, "name", filtered[0].Property, "allowed-set order, not claim order")
	assert.Equal(t, "Acme", filtered[0].Value, "first claim per property wins")
	assert.Equal(t, "website", filtered[1].Property)
	assert.Len(t, filtered[1].References, 1, "references preserved on retained claims")
}

func TestAssessEligibilityFiltersByTier(t *testing.T) {
	t.Parallel()

	claims := []model.PropertyClaim{
		{Property: "name", Value: "Acme"},
		{Property: "location", Value: "Springfield"},
		{Property: "employees", Value: "10-50"},
		{Property: "press_mentions", Value: 2},
	}
	assessment := model.NotabilityAssessment{IsNotable: true, Confidence: 0.9}

	properties := func(tier model.Tier, enrichment int) []string {
		result := AssessEligibility(assessment, claims, tier, enrichment, Options{})
		props := make([]string, len(result.Properties))
		for i, c := range result.Properties {
			props[i] = c.Property
		}
		return props
	}

	assert.Equal(t, []string{"name"}, properties(model.TierBasic, 0))
	assert.Equal(t, []string{"name", "location"}, properties(model.TierStandard, 0))
	assert.Equal(t, []string{"name", "location", "employees"}, properties(model.TierPremium, 0))
	assert.Equal(t, []string{"name", "location", "employees", "press_mentions"}, properties(model.TierPremium, 3))
}
