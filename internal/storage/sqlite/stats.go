package sqlite

import (
	"context"
	"fmt"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

// Stats summarises the graph contents with per-type breakdowns.
func (s *Store) Stats(ctx context.Context) (*storage.GraphStats, error) {
	stats := &storage.GraphStats{
		EntitiesByType:      make(map[string]int),
		RelationshipsByType: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM entities GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entity count: %w", err)
		}
		stats.EntitiesByType[entityType] = count
		stats.EntityCount += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM relationships GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("failed to count relationships: %w", err)
	}
	for rows.Next() {
		var relType string
		var count int
		if err := rows.Scan(&relType, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan relationship count: %w", err)
		}
		stats.RelationshipsByType[relType] = count
		stats.RelationshipCount += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contradictions").Scan(&stats.ContradictionCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count contradictions: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contradictions WHERE status = ?",
		string(types.ContradictionUnresolved),
	).Scan(&stats.UnresolvedContradictions)
	if err != nil {
		return nil, fmt.Errorf("failed to count unresolved contradictions: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(AVG(confidence), 0) FROM entities",
	).Scan(&stats.AvgEntityConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to average entity confidence: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(AVG(confidence), 0) FROM relationships",
	).Scan(&stats.AvgRelationshipConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to average relationship confidence: %w", err)
	}

	return stats, nil
}
