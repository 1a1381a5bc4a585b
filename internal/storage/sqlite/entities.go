package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

// PutEntity inserts or replaces an entity row by ID. The (name, type) unique
// constraint is enforced by the schema; callers resolve identity-key merges
// before persisting.
func (s *Store) PutEntity(ctx context.Context, entity *types.Entity) error {
	if entity == nil {
		return storage.ErrInvalidInput
	}
	if entity.ID == "" {
		return fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}
	if entity.Name == "" || entity.Type == "" {
		return fmt.Errorf("%w: entity name and type are required", storage.ErrInvalidInput)
	}

	propsJSON, err := marshalJSON(entity.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}
	sourcesJSON, err := marshalJSON(entity.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}
	if entity.UpdatedAt.IsZero() {
		entity.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO entities (id, name, type, properties, confidence, sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			properties = excluded.properties,
			confidence = excluded.confidence,
			sources = excluded.sources,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		entity.ID, entity.Name, entity.Type,
		propsJSON, entity.Confidence, sourcesJSON,
		entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store entity: %w", err)
	}
	return nil
}

// GetEntity retrieves an entity by ID.
func (s *Store) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, properties, confidence, sources, created_at, updated_at
		FROM entities WHERE id = ?
	`, id)
	return scanEntity(row)
}

// GetEntityByKey retrieves the entity with the given (name, type) identity key.
func (s *Store) GetEntityByKey(ctx context.Context, name, entityType string) (*types.Entity, error) {
	if name == "" || entityType == "" {
		return nil, fmt.Errorf("%w: entity name and type are required", storage.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, properties, confidence, sources, created_at, updated_at
		FROM entities WHERE name = ? AND type = ?
	`, name, entityType)
	return scanEntity(row)
}

// ListEntities retrieves entities matching the filter, highest confidence
// first.
func (s *Store) ListEntities(ctx context.Context, filter storage.EntityFilter) ([]*types.Entity, error) {
	filter.Normalize()

	query := `
		SELECT id, name, type, properties, confidence, sources, created_at, updated_at
		FROM entities WHERE 1=1
	`
	var args []interface{}

	if len(filter.Types) > 0 {
		clause, typeArgs := buildInClause(filter.Types)
		query += " AND type IN " + clause
		args = append(args, typeArgs...)
	}
	if len(filter.Names) > 0 {
		clause, nameArgs := buildInClause(filter.Names)
		query += " AND name IN " + clause
		args = append(args, nameArgs...)
	}
	if filter.NameContains != "" {
		query += " AND name LIKE ? COLLATE NOCASE"
		args = append(args, "%"+filter.NameContains+"%")
	}
	if filter.TypeContains != "" {
		query += " AND type LIKE ? COLLATE NOCASE"
		args = append(args, "%"+filter.TypeContains+"%")
	}
	if filter.MinConfidence > 0 {
		query += " AND confidence >= ?"
		args = append(args, filter.MinConfidence)
	}

	// Property filtering happens after decode: values live in a JSON
	// column, and the rendered-string comparison has no SQL form. The SQL
	// limit would then cut matches ranked below the window, so pagination
	// moves in-process whenever the post-decode filter is active.
	postFilter := filter.PropertyKey != ""
	query += " ORDER BY confidence DESC, updated_at DESC"
	if !postFilter {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*types.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		if postFilter {
			val, ok := entity.Properties[filter.PropertyKey]
			if !ok {
				continue
			}
			if filter.PropertyValue != "" && val.String() != filter.PropertyValue {
				continue
			}
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if postFilter {
		entities = pageSlice(entities, filter.Limit, filter.Offset)
	}
	return entities, nil
}

// pageSlice applies offset then limit to an already-ordered slice.
func pageSlice[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// DeleteEntity removes an entity. Incident relationships cascade via the
// schema's foreign keys.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
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

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*types.Entity, error) {
	var (
		entity      types.Entity
		propsJSON   sql.NullString
		sourcesJSON sql.NullString
	)
	err := row.Scan(
		&entity.ID, &entity.Name, &entity.Type,
		&propsJSON, &entity.Confidence, &sourcesJSON,
		&entity.CreatedAt, &entity.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	if err := unmarshalJSON(propsJSON, &entity.Properties); err != nil {
		return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
	}
	if err := unmarshalJSON(sourcesJSON, &entity.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	return &entity, nil
}
