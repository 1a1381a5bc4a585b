package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

// PutRelationship inserts or replaces a relationship row by ID. Missing
// endpoints surface as ErrMissingEndpoint via the foreign key constraints.
func (s *Store) PutRelationship(ctx context.Context, rel *types.Relationship) error {
	if rel == nil {
		return storage.ErrInvalidInput
	}
	if rel.ID == "" {
		return fmt.Errorf("%w: relationship ID is required", storage.ErrInvalidInput)
	}
	if rel.SourceID == "" || rel.TargetID == "" || rel.Type == "" {
		return fmt.Errorf("%w: relationship source, target and type are required", storage.ErrInvalidInput)
	}

	propsJSON, err := marshalJSON(rel.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}
	sourcesJSON, err := marshalJSON(rel.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}
	if rel.UpdatedAt.IsZero() {
		rel.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO relationships (id, source_id, target_id, type, properties, confidence, sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			target_id = excluded.target_id,
			type = excluded.type,
			properties = excluded.properties,
			confidence = excluded.confidence,
			sources = excluded.sources,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		rel.ID, rel.SourceID, rel.TargetID, rel.Type,
		propsJSON, rel.Confidence, sourcesJSON,
		rel.CreatedAt, rel.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%w: %s -> %s", storage.ErrMissingEndpoint, rel.SourceID, rel.TargetID)
		}
		return fmt.Errorf("failed to store relationship: %w", err)
	}
	return nil
}

// GetRelationship retrieves a relationship by ID.
func (s *Store) GetRelationship(ctx context.Context, id string) (*types.Relationship, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: relationship ID is required", storage.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, target_id, type, properties, confidence, sources, created_at, updated_at
		FROM relationships WHERE id = ?
	`, id)
	return scanRelationship(row)
}

// GetRelationshipByKey retrieves the relationship with the given
// (source, target, type) identity key.
func (s *Store) GetRelationshipByKey(ctx context.Context, sourceID, targetID, relType string) (*types.Relationship, error) {
	if sourceID == "" || targetID == "" || relType == "" {
		return nil, fmt.Errorf("%w: relationship source, target and type are required", storage.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, target_id, type, properties, confidence, sources, created_at, updated_at
		FROM relationships WHERE source_id = ? AND target_id = ? AND type = ?
	`, sourceID, targetID, relType)
	return scanRelationship(row)
}

// ListRelationships retrieves relationships matching the filter, most
// recently updated first. The EntityID filter matches either endpoint.
func (s *Store) ListRelationships(ctx context.Context, filter storage.RelationshipFilter) ([]*types.Relationship, error) {
	filter.Normalize()

	query := `
		SELECT id, source_id, target_id, type, properties, confidence, sources, created_at, updated_at
		FROM relationships WHERE 1=1
	`
	var args []interface{}

	if filter.EntityID != "" {
		query += " AND (source_id = ? OR target_id = ?)"
		args = append(args, filter.EntityID, filter.EntityID)
	}
	if filter.SourceID != "" {
		query += " AND source_id = ?"
		args = append(args, filter.SourceID)
	}
	if filter.TargetID != "" {
		query += " AND target_id = ?"
		args = append(args, filter.TargetID)
	}
	if len(filter.Types) > 0 {
		clause, typeArgs := buildInClause(filter.Types)
		query += " AND type IN " + clause
		args = append(args, typeArgs...)
	}
	if filter.MinConfidence > 0 {
		query += " AND confidence >= ?"
		args = append(args, filter.MinConfidence)
	}

	query += " ORDER BY updated_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	var rels []*types.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// DeleteRelationship removes a relationship by ID.
func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: relationship ID is required", storage.ErrInvalidInput)
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM relationships WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanRelationship(row rowScanner) (*types.Relationship, error) {
	var (
		rel         types.Relationship
		propsJSON   sql.NullString
		sourcesJSON sql.NullString
	)
	err := row.Scan(
		&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type,
		&propsJSON, &rel.Confidence, &sourcesJSON,
		&rel.CreatedAt, &rel.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan relationship: %w", err)
	}

	if err := unmarshalJSON(propsJSON, &rel.Properties); err != nil {
		return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
	}
	if err := unmarshalJSON(sourcesJSON, &rel.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	return &rel, nil
}
