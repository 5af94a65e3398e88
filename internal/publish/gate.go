// Package publish decides whether a tracked entity's record may be published
// to the public knowledge base and which structured properties are exposed
// for the entity's subscription tier. The gate is pure: the sandbox override
// is an explicit option, never an environment sniff.
package publish

import (
	"fmt"
	"sort"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

// Options parameterizes the eligibility policy.
//
// The gate ships the lenient policy: notable entities publish outright, and
// borderline ones publish on confidence alone or on confidence plus
// supporting references. The stricter notable-and-high-confidence variant
// was considered and rejected; high confidence instead routes the
// recommendation text, not the decision.
type Options struct {
	// SandboxMode forces CanPublish regardless of the assessment.
	SandboxMode bool

	// LenientThreshold publishes on confidence alone. Default 0.3.
	LenientThreshold float64

	// ReferenceThreshold publishes when references exist. Default 0.2.
	ReferenceThreshold float64

	// ReviewThreshold routes notable-but-uncertain entities to manual
	// review in the recommendation text. Default 0.7.
	ReviewThreshold float64

	// TopReferences caps how many references are surfaced. Default 3.
	TopReferences int
}

// DefaultOptions returns the shipped eligibility policy.
func DefaultOptions() Options {
	return Options{
		LenientThreshold:   0.3,
		ReferenceThreshold: 0.2,
		ReviewThreshold:    0.7,
		TopReferences:      3,
	}
}

func (o Options) withDefaults() Options {
	if o.LenientThreshold <= 0 {
		o.LenientThreshold = 0.3
	}
	if o.ReferenceThreshold <= 0 {
		o.ReferenceThreshold = 0.2
	}
	if o.ReviewThreshold <= 0 {
		o.ReviewThreshold = 0.7
	}
	if o.TopReferences <= 0 {
		o.TopReferences = 3
	}
	return o
}

// AssessEligibility combines the notability assessment with the entity's
// subscription tier and prior enrichment level, returning the publish
// decision and the tier-filtered property set. claims is the full candidate
// property set; retained claims keep their references.
func AssessEligibility(assessment model.NotabilityAssessment, claims []model.PropertyClaim, tier model.Tier, enrichmentLevel int, opts Options) model.PublishAssessment {
	opts = opts.withDefaults()

	canPublish := assessment.IsNotable ||
		assessment.Confidence >= opts.LenientThreshold ||
		(len(assessment.References) > 0 && assessment.Confidence >= opts.ReferenceThreshold)
	if opts.SandboxMode {
		canPublish = true
	}

	return model.PublishAssessment{
		CanPublish:        canPublish,
		IsNotable:         assessment.IsNotable,
		Confidence:        assessment.Confidence,
		Reasons:           assessment.Reasons,
		SeriousReferences: assessment.SeriousReferences,
		TopReferences:     topReferences(assessment.References, opts.TopReferences),
		Recommendation:    recommendationFor(assessment, canPublish, opts),
		Properties:        FilterClaims(claims, PropertiesForTier(tier, enrichmentLevel)),
	}
}

// PropertiesForTier returns the ordered property set a tier may publish.
// Sets are cumulative: basic ⊆ standard ⊆ premium, and premium expands once
// the prior enrichment level reaches enrichedLevel.
func PropertiesForTier(tier model.Tier, enrichmentLevel int) []string {
	props := append([]string(nil), tiers.Basic...)
	switch tier {
	case model.TierStandard:
		props = append(props, tiers.Standard...)
	case model.TierPremium:
		props = append(props, tiers.Standard...)
		props = append(props, tiers.Premium...)
		if enrichmentLevel >= enrichedLevel {
			props = append(props, tiers.Enriched...)
		}
	}
	return props
}

// FilterClaims keeps only claims whose property is in allowed, emitted in
// the allowed set's order so output is stable across runs. References on
// retained claims are preserved untouched.
func FilterClaims(claims []model.PropertyClaim, allowed []string) []model.PropertyClaim {
	byProperty := make(map[string]model.PropertyClaim, len(claims))
	for _, c := range claims {
		if _, seen := byProperty[c.Property]; !seen {
			byProperty[c.Property] = c
		}
	}

	filtered := make([]model.PropertyClaim, 0, len(allowed))
	for _, p := range allowed {
		if c, ok := byProperty[p]; ok {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// topReferences returns the n most trusted references, original order kept
// on trust ties.
func topReferences(refs []model.Reference, n int) []model.Reference {
	if len(refs) == 0 {
		return nil
	}
	sorted := append([]model.Reference(nil), refs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TrustScore > sorted[j].TrustScore
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func recommendationFor(assessment model.NotabilityAssessment, canPublish bool, opts Options) string {
	switch {
	case !assessment.IsNotable && len(assessment.Suggestions) > 0:
		return "Not yet notable: " + assessment.Suggestions[0]
	case !assessment.IsNotable:
		return "Not yet notable. Build independent coverage in trusted sources before publishing."
	case assessment.Confidence < opts.ReviewThreshold:
		return fmt.Sprintf("Notable, but confidence %.2f is below %.2f. Queue for manual review before publishing.", assessment.Confidence, opts.ReviewThreshold)
	case canPublish:
		return fmt.Sprintf("Ready to publish: %d serious references support notability.", assessment.SeriousReferences)
	default:
		return "Publication is on hold. Re-run the notability assessment after the next analysis."
	}
}
