package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

func TestTiersParsed(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, tiers.Basic)
	require.NotEmpty(t, tiers.Standard)
	require.NotEmpty(t, tiers.Premium)
	require.NotEmpty(t, tiers.Enriched)
	assert.Contains(t, tiers.Basic, "name")
}

func TestPropertiesForTierCumulative(t *testing.T) {
	t.Parallel()

	basic := PropertiesForTier(model.TierBasic, 0)
	standard := PropertiesForTier(model.TierStandard, 0)
	premium := PropertiesForTier(model.TierPremium, 0)

	assert.Equal(t, tiers.Basic, basic)
	assert.Equal(t, basic, standard[:len(basic)], "standard extends basic")
	assert.Equal(t, standard, premium[:len(standard)], "premium extends standard")
}

func TestPropertiesForTierEnrichment(t *testing.T) {
	t.Parallel()

	base := PropertiesForTier(model.TierPremium, 2)
	enriched := PropertiesForTier(model.TierPremium, 3)

	assert.Equal(t, len(base)+len(tiers.Enriched), len(enriched))
	for _, p := range tiers.Enriched {
		assert.NotContains(t, base, p)
		assert.Contains(t, enriched, p)
	}

	// Enrichment never expands the lower tiers.
	assert.Equal(t, PropertiesForTier(model.TierBasic, 0), PropertiesForTier(model.TierBasic, 10))
	assert.Equal(t, PropertiesForTier(model.TierStandard, 0), PropertiesForTier(model.TierStandard, 10))
}
