package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/voxmind/recollect/internal/llm"
	"github.com/voxmind/recollect/internal/vector"
	"github.com/voxmind/recollect/pkg/types"
)

// memoryNamespace partitions memory vectors from the entity embeddings
// sharing the index backend.
const memoryNamespace = "memories"

// memoryEmbeddingKey returns the index key for a memory.
func memoryEmbeddingKey(memoryID string) string {
	return "memory:" + memoryID
}

// MemoryMatch is one memory found by similarity search.
type MemoryMatch struct {
	MemoryID string
	Score    float64
}

// MemoryIndex maintains one vector per episodic memory, embedded from the
// memory's content. The same failure policy as the entity index applies:
// write failures are logged and swallowed so a missing embedding never
// fails the memory write, and read failures surface so callers can fall
// back to term matching.
type MemoryIndex struct {
	index    vector.Index
	embedder llm.EmbeddingGenerator
}

// NewMemoryIndex creates a memory index over the given backend and embedder.
func NewMemoryIndex(index vector.Index, embedder llm.EmbeddingGenerator) *MemoryIndex {
	return &MemoryIndex{index: index, embedder: embedder}
}

// IndexMemory embeds and stores the memory's content.
func (m *MemoryIndex) IndexMemory(ctx context.Context, mem *types.EpisodicMemory) {
	vectors, err := m.embedder.Embed(ctx, []string{mem.Content})
	if err != nil {
		log.Printf("retrieval: failed to embed memory %s: %v", mem.ID, err)
		return
	}
	if len(vectors) != 1 {
		log.Printf("retrieval: embedder returned %d vectors for memory %s", len(vectors), mem.ID)
		return
	}

	item := vector.Item{
		Key:    memoryEmbeddingKey(mem.ID),
		Vector: vectors[0],
		Text:   mem.Content,
		Metadata: map[string]string{
			"memory_id": mem.ID,
			"source":    mem.Source,
		},
		UpdatedAt: time.Now(),
	}
	if err := m.index.Upsert(ctx, memoryNamespace, item); err != nil {
		log.Printf("retrieval: failed to store vector for memory %s: %v", mem.ID, err)
	}
}

// RemoveMemory deletes the memory's vector. Absence is not an error.
func (m *MemoryIndex) RemoveMemory(ctx context.Context, memoryID string) {
	err := m.index.Delete(ctx, memoryNamespace, memoryEmbeddingKey(memoryID))
	if err != nil && !errors.Is(err, vector.ErrNotFound) {
		log.Printf("retrieval: failed to remove embedding for memory %s: %v", memoryID, err)
	}
}

// HasMemory reports whether the memory currently has a stored vector.
func (m *MemoryIndex) HasMemory(ctx context.Context, memoryID string) bool {
	_, err := m.index.Get(ctx, memoryNamespace, memoryEmbeddingKey(memoryID))
	return err == nil
}

// SearchSimilar embeds the query text and returns the closest memories,
// best first.
func (m *MemoryIndex) SearchSimilar(ctx context.Context, query string, limit int, minScore float64) ([]MemoryMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", vector.ErrInvalidInput)
	}

	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	matches, err := m.index.Query(ctx, memoryNamespace, vectors[0], vector.QueryOptions{
		Limit:    limit,
		MinScore: minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	results := make([]MemoryMatch, 0, len(matches))
	for _, match := range matches {
		results = append(results, MemoryMatch{
			MemoryID: match.Metadata["memory_id"],
			Score:    match.Score,
		})
	}
	return results, nil
}
