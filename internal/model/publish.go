package model

// Reference is an external source supporting an entity's notability.
type Reference struct {
	URL        string  `json:"url"`
	Title      string  `json:"title,omitempty"`
	TrustScore float64 `json:"trust_score"` // 0-1
}

// NotabilityAssessment is the notability collaborator's verdict on whether an
// entity meets the bar for public-record publication.
type NotabilityAssessment struct {
	IsNotable         bool        `json:"is_notable"`
	Confidence        float64     `json:"confidence"` // 0-1
	Reasons           []string    `json:"reasons,omitempty"`
	Suggestions       []string    `json:"suggestions,omitempty"`
	SeriousReferences int         `json:"serious_references"`
	References        []Reference `json:"references,omitempty"`
}

// PropertyClaim is one structured property candidate for publication,
// carrying the references that back it.
type PropertyClaim struct {
	Property   string      `json:"property"`
	Value      any         `json:"value"`
	References []Reference `json:"references,omitempty"`
}

// PublishAssessment is the gate's decision for a single publish attempt. It
// is recomputed per attempt and never stored; only the resulting published
// record (owned by the publish collaborator) persists.
type PublishAssessment struct {
	CanPublish        bool            `json:"can_publish"`
	IsNotable         bool            `json:"is_notable"`
	Confidence        float64         `json:"confidence"`
	Reasons           []string        `json:"reasons,omitempty"`
	SeriousReferences int             `json:"serious_references"`
	TopReferences     []Reference     `json:"top_references,omitempty"`
	Recommendation    string          `json:"recommendation"`
	Properties        []PropertyClaim `json:"properties"`
}
