package types

import "time"

// Relationship represents a typed directed edge between two entities.
// The identity key is (SourceID, TargetID, Type); repeated assertions of the
// same key merge in place, mirroring the entity merge contract. Both
// endpoints must exist when the relationship is created.
type Relationship struct {
	ID       string `json:"id"`        // Unique identifier (format: rel:uuid)
	SourceID string `json:"source_id"` // Source entity ID
	TargetID string `json:"target_id"` // Target entity ID
	Type     string `json:"type"`      // Relationship type (e.g. "works_on")

	// Properties, Confidence and Sources follow the same merge semantics
	// as Entity: shallow property merge, max confidence, source union.
	Properties Properties `json:"properties,omitempty"`
	Confidence float64    `json:"confidence"`
	Sources    []string   `json:"sources,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touches reports whether the relationship has the given entity as either
// endpoint. Path-finding treats edges as traversable in both directions.
func (r *Relationship) Touches(entityID string) bool {
	return r.SourceID == entityID || r.TargetID == entityID
}

// OtherEnd returns the endpoint opposite the given entity, or "" when the
// entity is not an endpoint. For self-loops it returns the entity itself.
func (r *Relationship) OtherEnd(entityID string) string {
	switch entityID {
	case r.SourceID:
		return r.TargetID
	case r.TargetID:
		return r.SourceID
	}
	return ""
}

// HasSource reports whether the given provenance string is already recorded.
func (r *Relationship) HasSource(source string) bool {
	for _, s := range r.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// MergeSources unions the given sources into the relationship's source set.
func (r *Relationship) MergeSources(sources []string) {
	for _, s := range sources {
		if s != "" && !r.HasSource(s) {
			r.Sources = append(r.Sources, s)
		}
	}
}
