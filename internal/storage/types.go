package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingEndpoint indicates a relationship references an entity
	// that does not exist.
	ErrMissingEndpoint = errors.New("relationship endpoint not found")
)

// EntityFilter narrows entity listings. Zero-valued fields are unconstrained.
type EntityFilter struct {
	// Types restricts results to entities whose type tag is in the set.
	Types []string

	// Names restricts results to entities with one of the exact names.
	Names []string

	// NameContains restricts results to names containing the substring,
	// case-insensitively.
	NameContains string

	// TypeContains restricts results to type tags containing the substring,
	// case-insensitively.
	TypeContains string

	// MinConfidence is an inclusive lower bound on confidence.
	MinConfidence float64

	// PropertyKey restricts results to entities carrying the property key.
	// When PropertyValue is also set, the stored value must render equal.
	PropertyKey   string
	PropertyValue string

	// Limit caps the number of results (default: 50, max: 500).
	Limit int

	// Offset skips the first N results.
	Offset int
}

// Normalize applies defaults and validates the EntityFilter.
func (f *EntityFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.MinConfidence < 0 {
		f.MinConfidence = 0
	}
}

// RelationshipFilter narrows relationship listings. Zero-valued fields are
// unconstrained.
type RelationshipFilter struct {
	// EntityID restricts results to relationships touching the entity as
	// either endpoint.
	EntityID string

	// SourceID restricts results to relationships originating at the entity.
	SourceID string

	// TargetID restricts results to relationships arriving at the entity.
	TargetID string

	// Types restricts results to relationships of the given types.
	Types []string

	// MinConfidence is an inclusive lower bound on confidence.
	MinConfidence float64

	// Limit caps the number of results (default: 50, max: 500).
	Limit int

	// Offset skips the first N results.
	Offset int
}

// Normalize applies defaults and validates the RelationshipFilter.
func (f *RelationshipFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.MinConfidence < 0 {
		f.MinConfidence = 0
	}
}

// MemoryFilter narrows episodic memory listings. Zero-valued fields are
// unconstrained.
type MemoryFilter struct {
	// Since is an inclusive lower bound on timestamp. Zero means no bound.
	Since time.Time

	// Until is an exclusive upper bound on timestamp. Zero means no bound.
	Until time.Time

	// Tags restricts results to memories carrying at least one of the tags.
	Tags []string

	// Sources restricts results to memories from any of the given sources.
	Sources []string

	// MinImportance is an inclusive lower bound on importance.
	MinImportance float64

	// Limit caps the number of results (default: 50, max: 1000).
	Limit int

	// Offset skips the first N results.
	Offset int
}

// Normalize applies defaults and validates the MemoryFilter.
func (f *MemoryFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = 50
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.MinImportance < 0 {
		f.MinImportance = 0
	}
}

// GraphStats summarises the contents of the knowledge graph.
type GraphStats struct {
	EntityCount              int            `json:"entity_count"`
	RelationshipCount        int            `json:"relationship_count"`
	ContradictionCount       int            `json:"contradiction_count"`
	UnresolvedContradictions int            `json:"unresolved_contradictions"`
	EntitiesByType           map[string]int `json:"entities_by_type"`
	RelationshipsByType      map[string]int `json:"relationships_by_type"`

	// Average confidences are 0 when the corresponding table is empty.
	AvgEntityConfidence       float64 `json:"avg_entity_confidence"`
	AvgRelationshipConfidence float64 `json:"avg_relationship_confidence"`
}
