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

// PutMemory inserts or replaces an episodic memory by ID.
func (s *Store) PutMemory(ctx context.Context, mem *types.EpisodicMemory) error {
	if mem == nil {
		return storage.ErrInvalidInput
	}
	if mem.ID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if mem.Content == "" {
		return fmt.Errorf("%w: memory content is required", storage.ErrInvalidInput)
	}

	tagsJSON, err := marshalJSON(mem.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadataJSON, err := marshalJSON(mem.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if mem.Timestamp.IsZero() {
		mem.Timestamp = time.Now()
	}

	query := `
		INSERT INTO memories (id, timestamp, content, importance, context, source, tags, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			content = excluded.content,
			importance = excluded.importance,
			context = excluded.context,
			source = excluded.source,
			tags = excluded.tags,
			metadata = excluded.metadata
	`
	_, err = s.db.ExecContext(ctx, query,
		mem.ID, mem.Timestamp, mem.Content, mem.Importance,
		nullableString(mem.Context), nullableString(mem.Source),
		tagsJSON, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory by ID.
func (s *Store) GetMemory(ctx context.Context, id string) (*types.EpisodicMemory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, content, importance, context, source, tags, metadata
		FROM memories WHERE id = ?
	`, id)
	return scanMemory(row)
}

// ListMemories retrieves memories matching the filter, newest first. Tag and
// source filters match any-of.
func (s *Store) ListMemories(ctx context.Context, filter storage.MemoryFilter) ([]*types.EpisodicMemory, error) {
	filter.Normalize()

	query := `
		SELECT id, timestamp, content, importance, context, source, tags, metadata
		FROM memories WHERE 1=1
	`
	var args []interface{}

	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, filter.Until)
	}
	if len(filter.Sources) > 0 {
		clause, sourceArgs := buildInClause(filter.Sources)
		query += " AND source IN " + clause
		args = append(args, sourceArgs...)
	}
	if filter.MinImportance > 0 {
		query += " AND importance >= ?"
		args = append(args, filter.MinImportance)
	}

	// Tags live in a JSON column, so any-of matching happens after decode
	// rather than in SQL; pagination then moves in-process so matches
	// below the SQL limit window are not cut before the filter runs.
	tagFilter := len(filter.Tags) > 0
	query += " ORDER BY timestamp DESC"
	if !tagFilter {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var memories []*types.EpisodicMemory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		if tagFilter && !hasAnyTag(mem.Tags, filter.Tags) {
			continue
		}
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if tagFilter {
		memories = pageSlice(memories, filter.Limit, filter.Offset)
	}
	return memories, nil
}

// DeleteMemory removes a memory by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
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

func hasAnyTag(tags, wanted []string) bool {
	for _, t := range tags {
		for _, w := range wanted {
			if t == w {
				return true
			}
		}
	}
	return false
}

func scanMemory(row rowScanner) (*types.EpisodicMemory, error) {
	var (
		mem          types.EpisodicMemory
		contextCol   sql.NullString
		sourceCol    sql.NullString
		tagsJSON     sql.NullString
		metadataJSON sql.NullString
	)
	err := row.Scan(
		&mem.ID, &mem.Timestamp, &mem.Content, &mem.Importance,
		&contextCol, &sourceCol, &tagsJSON, &metadataJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan memory: %w", err)
	}

	mem.Context = contextCol.String
	mem.Source = sourceCol.String
	if err := unmarshalJSON(tagsJSON, &mem.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := unmarshalJSON(metadataJSON, &mem.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &mem, nil
}
