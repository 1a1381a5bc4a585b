// Package storage provides composable storage interfaces for the Recollect
// system.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. Implementations are thin
// persistence adapters; merge semantics, contradiction detection and
// traversal live above this layer.
package storage

import (
	"context"

	"github.com/voxmind/recollect/pkg/types"
)

// EntityStore persists knowledge-graph entities.
type EntityStore interface {
	// PutEntity inserts or replaces an entity row by ID.
	PutEntity(ctx context.Context, entity *types.Entity) error

	// GetEntity retrieves an entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)

	// GetEntityByKey retrieves the entity with the given (name, type)
	// identity key. Returns ErrNotFound when no such entity exists.
	GetEntityByKey(ctx context.Context, name, entityType string) (*types.Entity, error)

	// ListEntities retrieves entities matching the filter, ordered by
	// most recently updated first.
	ListEntities(ctx context.Context, filter EntityFilter) ([]*types.Entity, error)

	// DeleteEntity removes an entity and its incident relationships.
	// Returns ErrNotFound if the entity doesn't exist.
	DeleteEntity(ctx context.Context, id string) error
}

// RelationshipStore persists typed edges between entities.
type RelationshipStore interface {
	// PutRelationship inserts or replaces a relationship row by ID.
	// Both endpoints must exist; missing endpoints yield ErrMissingEndpoint.
	PutRelationship(ctx context.Context, rel *types.Relationship) error

	// GetRelationship retrieves a relationship by ID.
	// Returns ErrNotFound if the relationship doesn't exist.
	GetRelationship(ctx context.Context, id string) (*types.Relationship, error)

	// GetRelationshipByKey retrieves the relationship with the given
	// (source, target, type) identity key. Returns ErrNotFound when no
	// such relationship exists.
	GetRelationshipByKey(ctx context.Context, sourceID, targetID, relType string) (*types.Relationship, error)

	// ListRelationships retrieves relationships matching the filter,
	// ordered by most recently updated first.
	ListRelationships(ctx context.Context, filter RelationshipFilter) ([]*types.Relationship, error)

	// DeleteRelationship removes a relationship by ID.
	// Returns ErrNotFound if the relationship doesn't exist.
	DeleteRelationship(ctx context.Context, id string) error
}

// ContradictionStore persists contradiction records.
type ContradictionStore interface {
	// PutContradiction inserts or replaces a contradiction row by ID.
	PutContradiction(ctx context.Context, c *types.Contradiction) error

	// GetContradiction retrieves a contradiction by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetContradiction(ctx context.Context, id string) (*types.Contradiction, error)

	// ListContradictions retrieves contradictions for an entity, oldest
	// first. An empty entityID lists across all entities. When
	// unresolvedOnly is set, resolved records are excluded.
	ListContradictions(ctx context.Context, entityID string, unresolvedOnly bool) ([]*types.Contradiction, error)
}

// GraphStore is the combined persistence surface for the knowledge graph.
type GraphStore interface {
	EntityStore
	RelationshipStore
	ContradictionStore

	// Stats summarises the graph contents.
	Stats(ctx context.Context) (*GraphStats, error)

	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore persists episodic memories for the retrieval pipeline.
type MemoryStore interface {
	// PutMemory inserts or replaces an episodic memory by ID.
	PutMemory(ctx context.Context, mem *types.EpisodicMemory) error

	// GetMemory retrieves a memory by ID.
	// Returns ErrNotFound if the memory doesn't exist.
	GetMemory(ctx context.Context, id string) (*types.EpisodicMemory, error)

	// ListMemories retrieves memories matching the filter, newest first.
	ListMemories(ctx context.Context, filter MemoryFilter) ([]*types.EpisodicMemory, error)

	// DeleteMemory removes a memory by ID.
	// Returns ErrNotFound if the memory doesn't exist.
	DeleteMemory(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
