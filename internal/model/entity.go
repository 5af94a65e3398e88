package model

import "time"

// EntityStatus represents the lifecycle state of a tracked entity as it moves
// through the extraction/analysis pipeline.
type EntityStatus string

const (
	EntityStatusPending    EntityStatus = "pending"
	EntityStatusProcessing EntityStatus = "processing"
	EntityStatusExtracted  EntityStatus = "extracted"
	EntityStatusAnalyzed   EntityStatus = "analyzed"
	EntityStatusError      EntityStatus = "error"
)

// Tier is the subscription level controlling which structured properties
// may be published for an entity.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierBasic, TierStandard, TierPremium:
		return true
	}
	return false
}

// TrackedEntity is a business whose AI visibility is being monitored.
// Entities are soft-deleted (DeletedAt) so historical analyses stay
// attributable.
type TrackedEntity struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	SourceURL   string       `json:"source_url"`
	Category    string       `json:"category,omitempty"`
	Location    string       `json:"location,omitempty"`
	Status      EntityStatus `json:"status"`
	Tier        Tier         `json:"tier"`
	AutoRefresh bool         `json:"auto_refresh"`
	NextRunAt   *time.Time   `json:"next_run_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
}
