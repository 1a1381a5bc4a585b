// Package types defines the core data structures for the Recollect
// knowledge-graph and memory-retrieval system: entities, relationships,
// contradictions, embeddings, and episodic memories.
package types

// Entity type constants. The graph accepts arbitrary type tags; these are
// the types the assistant produces most often and the ones validation
// helpers recognise.
const (
	EntityTypePerson       = "person"
	EntityTypeOrganization = "organization"
	EntityTypeProject      = "project"
	EntityTypeLocation     = "location"
	EntityTypeEvent        = "event"
	EntityTypeConcept      = "concept"
	EntityTypeTask         = "task"
	EntityTypeTool         = "tool"
	EntityTypePreference   = "preference"
	EntityTypeDocument     = "document"
)

// Relationship type constants. Relationships are stored directed; the query
// engine traverses them in both directions.
const (
	RelKnows      = "knows"
	RelWorksWith  = "works_with"
	RelWorksOn    = "works_on"
	RelEmployedBy = "employed_by"
	RelLocatedIn  = "located_in"
	RelMemberOf   = "member_of"
	RelOwns       = "owns"
	RelUses       = "uses"
	RelLikes      = "likes"
	RelDislikes   = "dislikes"
	RelRelatesTo  = "relates_to"
)

// KnownEntityTypes lists the entity types validation helpers recognise.
var KnownEntityTypes = []string{
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeProject,
	EntityTypeLocation,
	EntityTypeEvent,
	EntityTypeConcept,
	EntityTypeTask,
	EntityTypeTool,
	EntityTypePreference,
	EntityTypeDocument,
}

// IsKnownEntityType reports whether the given type tag is one of the
// well-known entity types. Unknown types are still storable; callers use
// this only for advisory validation.
func IsKnownEntityType(entityType string) bool {
	for _, t := range KnownEntityTypes {
		if t == entityType {
			return true
		}
	}
	return false
}

// DefaultConfidence is assigned to assertions that arrive without an
// explicit confidence score.
const DefaultConfidence = 0.7

// ClampConfidence forces a confidence score into the valid [0, 1] range.
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
