package graph

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/voxmind/recollect/internal/llm"
	"github.com/voxmind/recollect/internal/vector"
	"github.com/voxmind/recollect/pkg/types"
)

// entityNamespace partitions entity vectors from any other embeddings
// sharing the index backend.
const entityNamespace = "entities"

// embeddingKey returns the index key for an entity. The prefix keeps entity
// keys recognisable in shared backends.
func embeddingKey(entityID string) string {
	return "entity:" + entityID
}

// EmbeddingIndex maintains one vector per entity, embedded from the
// canonical "{name} ({type})" text. Write failures degrade the graph to
// lexical-only search for the affected entities, so they are logged rather
// than propagated; reads distinguish absence from backend failure.
type EmbeddingIndex struct {
	index    vector.Index
	embedder llm.EmbeddingGenerator
}

// NewEmbeddingIndex creates an embedding index over the given backend and
// embedder.
func NewEmbeddingIndex(index vector.Index, embedder llm.EmbeddingGenerator) *EmbeddingIndex {
	return &EmbeddingIndex{index: index, embedder: embedder}
}

// IndexEntity embeds and stores the entity's canonical text. Failures are
// logged and swallowed: a missing embedding must never fail the entity
// write it accompanies.
func (e *EmbeddingIndex) IndexEntity(ctx context.Context, entity *types.Entity) {
	if err := e.indexEntities(ctx, []*types.Entity{entity}); err != nil {
		log.Printf("graph: failed to index entity %s: %v", entity.ID, err)
	}
}

// IndexEntities embeds and stores a batch of entities in one embedder call.
// Like IndexEntity, failures are logged and swallowed.
func (e *EmbeddingIndex) IndexEntities(ctx context.Context, entities []*types.Entity) {
	if err := e.indexEntities(ctx, entities); err != nil {
		log.Printf("graph: failed to index %d entities: %v", len(entities), err)
	}
}

func (e *EmbeddingIndex) indexEntities(ctx context.Context, entities []*types.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	texts := make([]string, len(entities))
	for i, entity := range entities {
		texts[i] = entity.EmbeddingText()
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding generation failed: %w", err)
	}
	if len(vectors) != len(entities) {
		return fmt.Errorf("embedder returned %d vectors for %d entities", len(vectors), len(entities))
	}

	for i, entity := range entities {
		item := vector.Item{
			Key:    embeddingKey(entity.ID),
			Vector: vectors[i],
			Text:   texts[i],
			Metadata: map[string]string{
				"entity_id":   entity.ID,
				"entity_type": entity.Type,
				"entity_name": entity.Name,
			},
			UpdatedAt: time.Now(),
		}
		if err := e.index.Upsert(ctx, entityNamespace, item); err != nil {
			return fmt.Errorf("failed to store vector for %s: %w", entity.ID, err)
		}
	}
	return nil
}

// RemoveEntity deletes the entity's vector. Absence is not an error: the
// entity may never have been indexed.
func (e *EmbeddingIndex) RemoveEntity(ctx context.Context, entityID string) {
	err := e.index.Delete(ctx, entityNamespace, embeddingKey(entityID))
	if err != nil && err != vector.ErrNotFound {
		log.Printf("graph: failed to remove embedding for %s: %v", entityID, err)
	}
}

// RemoveEntities deletes a batch of entity vectors.
func (e *EmbeddingIndex) RemoveEntities(ctx context.Context, entityIDs []string) {
	for _, id := range entityIDs {
		e.RemoveEntity(ctx, id)
	}
}

// HasEntity reports whether the entity currently has a stored vector.
func (e *EmbeddingIndex) HasEntity(ctx context.Context, entityID string) bool {
	_, err := e.index.Get(ctx, entityNamespace, embeddingKey(entityID))
	return err == nil
}

// SearchSimilar embeds the query text and returns the closest entities,
// best first. Backend failures return the error; callers fall back to
// lexical search.
func (e *EmbeddingIndex) SearchSimilar(ctx context.Context, query string, limit int, minScore float64) ([]types.EntityMatch, error) {
	return e.SearchSimilarByType(ctx, query, "", limit, minScore)
}

// SearchSimilarByType is SearchSimilar restricted to entities of one type.
// An empty entityType searches all types.
func (e *EmbeddingIndex) SearchSimilarByType(ctx context.Context, query, entityType string, limit int, minScore float64) ([]types.EntityMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", vector.ErrInvalidInput)
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	var filter map[string]string
	if entityType != "" {
		filter = map[string]string{"entity_type": entityType}
	}
	matches, err := e.index.Query(ctx, entityNamespace, vectors[0], vector.QueryOptions{
		Limit:    limit,
		MinScore: minScore,
		Filter:   filter,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	results := make([]types.EntityMatch, 0, len(matches))
	for _, m := range matches {
		results = append(results, types.EntityMatch{
			EntityID:   m.Metadata["entity_id"],
			Score:      m.Score,
			EntityType: m.Metadata["entity_type"],
			EntityName: m.Metadata["entity_name"],
		})
	}
	return results, nil
}

// Count returns the number of indexed entities, or 0 on backend failure.
func (e *EmbeddingIndex) Count(ctx context.Context) int {
	count, err := e.index.Count(ctx, entityNamespace)
	if err != nil {
		log.Printf("graph: failed to count embeddings: %v", err)
		return 0
	}
	return count
}
