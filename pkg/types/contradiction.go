package types

import "time"

// ContradictionStatus is the resolution state of a recorded contradiction.
type ContradictionStatus string

const (
	// ContradictionUnresolved indicates the conflict is still open.
	ContradictionUnresolved ContradictionStatus = "unresolved"

	// ContradictionResolved indicates a caller explicitly resolved the
	// conflict. The system never auto-resolves: silent resolution would
	// hide data-quality signals.
	ContradictionResolved ContradictionStatus = "resolved"
)

// Contradiction records that two sourced assertions disagree about the same
// property of the same entity. It is created when a merge detects a
// conflicting value for an existing property key, before the new value
// overwrites the old one. Contradictions are never silently dropped.
type Contradiction struct {
	ID          string `json:"id"`           // Unique identifier (format: con:uuid)
	EntityID    string `json:"entity_id"`    // Entity whose property conflicts
	PropertyKey string `json:"property_key"` // The disputed property key

	OldValue PropertyValue `json:"old_value"`
	NewValue PropertyValue `json:"new_value"`

	OldSources []string `json:"old_sources,omitempty"`
	NewSources []string `json:"new_sources,omitempty"`

	OldConfidence float64 `json:"old_confidence"`
	NewConfidence float64 `json:"new_confidence"`

	Status ContradictionStatus `json:"status"`

	// ResolvedValue carries the value chosen at resolution time, when any.
	ResolvedValue *PropertyValue `json:"resolved_value,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
