package types

import "time"

// Entity represents a named, typed fact-bearing node in the knowledge graph.
// The identity key for deduplication is (Name, Type): at most one live entity
// exists per pair, and repeated assertions of the same key merge in place.
type Entity struct {
	ID   string `json:"id"`   // Unique identifier (format: ent:uuid)
	Name string `json:"name"` // Display name, half of the identity key
	Type string `json:"type"` // Type tag, other half of the identity key

	// Properties holds structured facts about the entity. Merges are
	// shallow: new keys win, conflicting values for an existing key are
	// recorded as contradictions before being overwritten.
	Properties Properties `json:"properties,omitempty"`

	// Confidence is the certainty of the assertion (0.0-1.0). Merging
	// takes the max of old and new, so confidence never decreases.
	Confidence float64 `json:"confidence"`

	// Sources lists provenance strings, deduplicated with set semantics.
	// Merging unions the sets; a source is never dropped.
	Sources []string `json:"sources,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmbeddingText returns the canonical text embedded for this entity.
// The embedding index regenerates vectors whenever this text changes.
func (e *Entity) EmbeddingText() string {
	return e.Name + " (" + e.Type + ")"
}

// HasSource reports whether the given provenance string is already recorded.
func (e *Entity) HasSource(source string) bool {
	for _, s := range e.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// MergeSources unions the given sources into the entity's source set,
// preserving the order of first appearance.
func (e *Entity) MergeSources(sources []string) {
	for _, s := range sources {
		if s != "" && !e.HasSource(s) {
			e.Sources = append(e.Sources, s)
		}
	}
}
