package graph

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

// semanticScoreThreshold is the minimum similarity for a semantic match to
// count. Below it the result set is treated as empty and lexical fallback
// kicks in.
const semanticScoreThreshold = 0.5

// Neighborhood is an entity with its incident edges and the entities on
// their far ends.
type Neighborhood struct {
	Entity        *types.Entity         `json:"entity"`
	Relationships []*types.Relationship `json:"relationships"`
	Related       []*types.Entity       `json:"related"`
}

// SearchResult is one entity found by Search, with the score and the method
// that produced it ("semantic" or "lexical").
type SearchResult struct {
	Entity *types.Entity `json:"entity"`
	Score  float64       `json:"score"`
	Method string        `json:"method"`
}

// QueryEngine answers read queries over the knowledge graph: neighborhood
// expansion, entity search and path finding.
type QueryEngine struct {
	entities      *EntityStore
	relationships *RelationshipStore
	index         *EmbeddingIndex // nil disables semantic search
	stats         statsProvider
}

type statsProvider interface {
	Stats(ctx context.Context) (*storage.GraphStats, error)
}

// NewQueryEngine creates a query engine over the graph components. index
// may be nil, in which case Search is lexical-only.
func NewQueryEngine(entities *EntityStore, relationships *RelationshipStore, index *EmbeddingIndex, stats statsProvider) *QueryEngine {
	return &QueryEngine{
		entities:      entities,
		relationships: relationships,
		index:         index,
		stats:         stats,
	}
}

// GraphQuery filters a combined entity + relationship view of the graph.
type GraphQuery struct {
	EntityTypes       []string
	EntityNames       []string
	RelationshipTypes []string
	MinConfidence     float64
	Limit             int
	Offset            int
}

// GraphView is the result of a combined query. Totals are graph-wide counts
// for the requested types, independent of limit and offset.
type GraphView struct {
	Entities           []*types.Entity       `json:"entities"`
	Relationships      []*types.Relationship `json:"relationships"`
	TotalEntities      int                   `json:"total_entities"`
	TotalRelationships int                   `json:"total_relationships"`
}

// Query returns a filtered slice of the graph. Each sub-query degrades to an
// empty partial result on failure rather than failing the whole view; the
// first error is still reported alongside whatever was gathered.
func (q *QueryEngine) Query(ctx context.Context, query GraphQuery) (*GraphView, error) {
	if query.Limit < 1 {
		query.Limit = 25
	}

	view := &GraphView{}
	var firstErr error

	entities, err := q.entities.List(ctx, storage.EntityFilter{
		Types:         query.EntityTypes,
		Names:         query.EntityNames,
		MinConfidence: query.MinConfidence,
		Limit:         query.Limit,
		Offset:        query.Offset,
	})
	if err != nil {
		log.Printf("graph: entity sub-query failed: %v", err)
		firstErr = err
	} else {
		view.Entities = entities
	}

	// Only relationships touching a selected entity belong in the view.
	// Fetching per entity keeps the endpoint restriction in SQL; the cap
	// of 2×limit leaves ranking room before the final trim.
	relCap := query.Limit * 2
	seen := make(map[string]bool)
	var rels []*types.Relationship
	for _, entity := range view.Entities {
		if len(rels) >= relCap {
			break
		}
		batch, err := q.relationships.List(ctx, storage.RelationshipFilter{
			EntityID:      entity.ID,
			Types:         query.RelationshipTypes,
			MinConfidence: query.MinConfidence,
			Limit:         relCap,
		})
		if err != nil {
			log.Printf("graph: relationship sub-query failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		for _, rel := range batch {
			if seen[rel.ID] {
				continue
			}
			seen[rel.ID] = true
			rels = append(rels, rel)
			if len(rels) >= relCap {
				break
			}
		}
	}
	if len(rels) > query.Limit {
		rels = rels[:query.Limit]
	}
	view.Relationships = rels

	stats, err := q.stats.Stats(ctx)
	if err != nil {
		log.Printf("graph: stats sub-query failed: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		view.TotalEntities = countForTypes(stats.EntitiesByType, query.EntityTypes)
		view.TotalRelationships = countForTypes(stats.RelationshipsByType, query.RelationshipTypes)
	}

	return view, firstErr
}

// countForTypes sums the per-type counts for the requested types, or all
// types when none are requested.
func countForTypes(byType map[string]int, requested []string) int {
	if len(requested) == 0 {
		total := 0
		for _, count := range byType {
			total += count
		}
		return total
	}
	total := 0
	for _, t := range requested {
		total += byType[t]
	}
	return total
}

// Neighborhood returns the entity, up to limit incident relationships, and
// the entities on their far ends. Dangling edges (far end already deleted)
// are skipped rather than failing the query.
func (q *QueryEngine) Neighborhood(ctx context.Context, entityID string, limit int) (*Neighborhood, error) {
	if limit < 1 {
		limit = 25
	}

	entity, err := q.entities.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}

	rels, err := q.relationships.ForEntity(ctx, entityID, limit)
	if err != nil {
		return nil, err
	}

	result := &Neighborhood{Entity: entity, Relationships: rels}
	seen := map[string]bool{entityID: true}
	for _, rel := range rels {
		otherID := rel.OtherEnd(entityID)
		if otherID == "" || seen[otherID] {
			continue
		}
		seen[otherID] = true

		other, err := q.entities.Get(ctx, otherID)
		if err != nil {
			log.Printf("graph: skipping dangling relationship %s: %v", rel.ID, err)
			continue
		}
		result.Related = append(result.Related, other)
	}
	return result, nil
}

// Search finds entities matching a free-text query. Semantic search runs
// first when an embedding index is available; when it fails or nothing
// clears the similarity threshold, lexical substring search over names and
// type tags takes over.
func (q *QueryEngine) Search(ctx context.Context, query string, limit, offset int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", storage.ErrInvalidInput)
	}
	if limit < 1 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	if q.index != nil {
		results, err := q.searchSemantic(ctx, query, limit, offset)
		if err != nil {
			log.Printf("graph: semantic search failed, falling back to lexical: %v", err)
		} else if len(results) > 0 {
			return results, nil
		}
	}
	return q.searchLexical(ctx, query, limit, offset)
}

func (q *QueryEngine) searchSemantic(ctx context.Context, query string, limit, offset int) ([]SearchResult, error) {
	matches, err := q.index.SearchSimilar(ctx, query, limit+offset, semanticScoreThreshold)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		entity, err := q.entities.Get(ctx, m.EntityID)
		if err != nil {
			// Stale vector for a deleted entity; skip it.
			continue
		}
		results = append(results, SearchResult{
			Entity: entity,
			Score:  m.Score,
			Method: "semantic",
		})
	}
	return pageResults(results, limit, offset), nil
}

func (q *QueryEngine) searchLexical(ctx context.Context, query string, limit, offset int) ([]SearchResult, error) {
	byName, err := q.entities.List(ctx, storage.EntityFilter{
		NameContains: query,
		Limit:        limit + offset,
	})
	if err != nil {
		return nil, err
	}
	byType, err := q.entities.List(ctx, storage.EntityFilter{
		TypeContains: query,
		Limit:        limit + offset,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(byName))
	results := make([]SearchResult, 0, len(byName)+len(byType))
	for _, entity := range append(byName, byType...) {
		if seen[entity.ID] {
			continue
		}
		seen[entity.ID] = true

		score := 0.5
		if strings.EqualFold(entity.Name, query) || strings.EqualFold(entity.Type, query) {
			score = 1.0
		}
		results = append(results, SearchResult{
			Entity: entity,
			Score:  score,
			Method: "lexical",
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return pageResults(results, limit, offset), nil
}

// pageResults applies offset then limit to an already-ordered result list.
func pageResults(results []SearchResult, limit, offset int) []SearchResult {
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Stats summarises the graph, including how many entities currently have
// embeddings.
func (q *QueryEngine) Stats(ctx context.Context) (*storage.GraphStats, int, error) {
	stats, err := q.stats.Stats(ctx)
	if err != nil {
		return nil, 0, err
	}
	indexed := 0
	if q.index != nil {
		indexed = q.index.Count(ctx)
	}
	return stats, indexed, nil
}
