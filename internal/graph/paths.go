package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/voxmind/recollect/internal/storage"
)

// maxPathDepth caps path searches regardless of what the caller asks for.
const maxPathDepth = 6

// maxNeighborsPerNode bounds the fan-out loaded for each frontier node so a
// hub entity cannot blow up the search.
const maxNeighborsPerNode = 200

// Path is one route between two entities. EntityIDs runs from source to
// target inclusive; Confidence is the weakest edge along the route.
type Path struct {
	EntityIDs  []string `json:"entity_ids"`
	Length     int      `json:"length"` // Number of edges
	Confidence float64  `json:"confidence"`
}

// FindPaths returns routes from sourceID to targetID within maxDepth hops,
// shortest first. The search is breadth-first with a global visited set:
// each intermediate entity appears in at most one path, but the target
// collects every distinct arrival branch. A search from an entity to itself
// yields the single trivial path.
func (q *QueryEngine) FindPaths(ctx context.Context, sourceID, targetID string, maxDepth int) ([]Path, error) {
	if sourceID == "" || targetID == "" {
		return nil, fmt.Errorf("%w: source and target entity IDs are required", storage.ErrInvalidInput)
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxDepth > maxPathDepth {
		maxDepth = maxPathDepth
	}

	// Both endpoints must exist, even for trivial queries.
	if _, err := q.entities.Get(ctx, sourceID); err != nil {
		return nil, err
	}
	if sourceID != targetID {
		if _, err := q.entities.Get(ctx, targetID); err != nil {
			return nil, err
		}
	}

	if sourceID == targetID {
		return []Path{{EntityIDs: []string{sourceID}, Length: 0, Confidence: 1}}, nil
	}
	if maxDepth == 0 {
		return nil, nil
	}

	type frontier struct {
		node    string
		path    []string
		minConf float64
		depth   int
	}

	visited := map[string]bool{sourceID: true}
	queue := []frontier{{node: sourceID, path: []string{sourceID}, minConf: 1, depth: 0}}

	var paths []Path
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= maxDepth {
			continue
		}

		rels, err := q.relationships.ForEntity(ctx, cur.node, maxNeighborsPerNode)
		if err != nil {
			return nil, err
		}

		for _, rel := range rels {
			neighbor := rel.OtherEnd(cur.node)
			if neighbor == "" || neighbor == cur.node {
				continue
			}

			conf := cur.minConf
			if rel.Confidence < conf {
				conf = rel.Confidence
			}

			if neighbor == targetID {
				// The target is never marked visited, so every
				// distinct branch reaching it becomes a path.
				path := append(append([]string{}, cur.path...), targetID)
				paths = append(paths, Path{
					EntityIDs:  path,
					Length:     len(path) - 1,
					Confidence: conf,
				})
				continue
			}

			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			queue = append(queue, frontier{
				node:    neighbor,
				path:    append(append([]string{}, cur.path...), neighbor),
				minConf: conf,
				depth:   cur.depth + 1,
			})
		}
	}

	sort.SliceStable(paths, func(i, j int) bool {
		if paths[i].Length != paths[j].Length {
			return paths[i].Length < paths[j].Length
		}
		return paths[i].Confidence > paths[j].Confidence
	})
	return paths, nil
}
