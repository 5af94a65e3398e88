package publish

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed tiers.yaml
var tiersYAML []byte

// tierSets holds the ordered per-tier property lists parsed from tiers.yaml.
type tierSets struct {
	Basic    []string `yaml:"basic"`
	Standard []string `yaml:"standard"`
	Premium  []string `yaml:"premium"`
	Enriched []string `yaml:"enriched"`
}

var tiers tierSets

func init() {
	if err := yaml.Unmarshal(tiersYAML, &tiers); err != nil {
		panic("publish: parse tiers.yaml: " + err.Error())
	}
}

// enrichedLevel is the prior enrichment level at which premium entities
// unlock the extended property set.
const enrichedLevel = 3
