package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

// PutContradiction inserts or replaces a contradiction row by ID.
func (s *Store) PutContradiction(ctx context.Context, c *types.Contradiction) error {
	if c == nil {
		return storage.ErrInvalidInput
	}
	if c.ID == "" {
		return fmt.Errorf("%w: contradiction ID is required", storage.ErrInvalidInput)
	}
	if c.EntityID == "" || c.PropertyKey == "" {
		return fmt.Errorf("%w: contradiction entity ID and property key are required", storage.ErrInvalidInput)
	}

	oldValueJSON, err := json.Marshal(c.OldValue)
	if err != nil {
		return fmt.Errorf("failed to marshal old value: %w", err)
	}
	newValueJSON, err := json.Marshal(c.NewValue)
	if err != nil {
		return fmt.Errorf("failed to marshal new value: %w", err)
	}
	oldSourcesJSON, err := marshalJSON(c.OldSources)
	if err != nil {
		return fmt.Errorf("failed to marshal old sources: %w", err)
	}
	newSourcesJSON, err := marshalJSON(c.NewSources)
	if err != nil {
		return fmt.Errorf("failed to marshal new sources: %w", err)
	}

	var resolvedValueJSON interface{}
	if c.ResolvedValue != nil {
		data, err := json.Marshal(c.ResolvedValue)
		if err != nil {
			return fmt.Errorf("failed to marshal resolved value: %w", err)
		}
		resolvedValueJSON = string(data)
	}

	if c.Status == "" {
		c.Status = types.ContradictionUnresolved
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO contradictions (
			id, entity_id, property_key,
			old_value, new_value, old_sources, new_sources,
			old_confidence, new_confidence,
			status, resolved_value, created_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			resolved_value = excluded.resolved_value,
			resolved_at = excluded.resolved_at
	`
	_, err = s.db.ExecContext(ctx, query,
		c.ID, c.EntityID, c.PropertyKey,
		string(oldValueJSON), string(newValueJSON), oldSourcesJSON, newSourcesJSON,
		c.OldConfidence, c.NewConfidence,
		string(c.Status), resolvedValueJSON, c.CreatedAt, nullableTime(c.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store contradiction: %w", err)
	}
	return nil
}

// GetContradiction retrieves a contradiction by ID.
func (s *Store) GetContradiction(ctx context.Context, id string) (*types.Contradiction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: contradiction ID is required", storage.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, entity_id, property_key,
		       old_value, new_value, old_sources, new_sources,
		       old_confidence, new_confidence,
		       status, resolved_value, created_at, resolved_at
		FROM contradictions WHERE id = ?
	`, id)
	return scanContradiction(row)
}

// ListContradictions retrieves contradictions oldest first, so the first
// unresolved record for a property key is the first one returned.
func (s *Store) ListContradictions(ctx context.Context, entityID string, unresolvedOnly bool) ([]*types.Contradiction, error) {
	query := `
		SELECT id, entity_id, property_key,
		       old_value, new_value, old_sources, new_sources,
		       old_confidence, new_confidence,
		       status, resolved_value, created_at, resolved_at
		FROM contradictions WHERE 1=1
	`
	var args []interface{}

	if entityID != "" {
		query += " AND entity_id = ?"
		args = append(args, entityID)
	}
	if unresolvedOnly {
		query += " AND status = ?"
		args = append(args, string(types.ContradictionUnresolved))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contradictions: %w", err)
	}
	defer rows.Close()

	var records []*types.Contradiction
	for rows.Next() {
		c, err := scanContradiction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, c)
	}
	return records, rows.Err()
}

func scanContradiction(row rowScanner) (*types.Contradiction, error) {
	var (
		c              types.Contradiction
		oldValueJSON   sql.NullString
		newValueJSON   sql.NullString
		oldSourcesJSON sql.NullString
		newSourcesJSON sql.NullString
		status         string
		resolvedJSON   sql.NullString
		resolvedAt     sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.EntityID, &c.PropertyKey,
		&oldValueJSON, &newValueJSON, &oldSourcesJSON, &newSourcesJSON,
		&c.OldConfidence, &c.NewConfidence,
		&status, &resolvedJSON, &c.CreatedAt, &resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contradiction: %w", err)
	}

	c.Status = types.ContradictionStatus(status)
	if err := unmarshalJSON(oldValueJSON, &c.OldValue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal old value: %w", err)
	}
	if err := unmarshalJSON(newValueJSON, &c.NewValue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal new value: %w", err)
	}
	if err := unmarshalJSON(oldSourcesJSON, &c.OldSources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal old sources: %w", err)
	}
	if err := unmarshalJSON(newSourcesJSON, &c.NewSources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal new sources: %w", err)
	}
	if resolvedJSON.Valid && resolvedJSON.String != "" {
		var v types.PropertyValue
		if err := json.Unmarshal([]byte(resolvedJSON.String), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal resolved value: %w", err)
		}
		c.ResolvedValue = &v
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	return &c, nil
}
