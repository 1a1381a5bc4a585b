package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// vectorSearchMaxCandidates caps the number of stored vectors loaded per
// query. Beyond this the in-process scan becomes the dominant cost and a
// pgvector backend should be used instead.
const vectorSearchMaxCandidates = 10000

// SQLiteIndex implements Index on a SQLite embeddings table. Vectors are
// serialized as little-endian float32 BLOBs; similarity search loads the
// namespace's candidates and scores them in process.
type SQLiteIndex struct {
	db *sql.DB
}

var _ Index = (*SQLiteIndex)(nil)

// NewSQLiteIndex wraps an existing database handle. The handle is expected to
// carry the embeddings table (the graph store's schema creates it), so both
// stores share one file and one write connection.
func NewSQLiteIndex(db *sql.DB) *SQLiteIndex {
	return &SQLiteIndex{db: db}
}

// Upsert inserts or replaces an item under (namespace, key).
func (idx *SQLiteIndex) Upsert(ctx context.Context, namespace string, item Item) error {
	if namespace == "" || item.Key == "" {
		return fmt.Errorf("%w: namespace and key are required", ErrInvalidInput)
	}
	if len(item.Vector) == 0 {
		return fmt.Errorf("%w: vector cannot be empty", ErrInvalidInput)
	}

	var metadataJSON interface{}
	if len(item.Metadata) > 0 {
		data, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO embeddings (namespace, key, vector, dimension, text, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			text = excluded.text,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`
	_, err := idx.db.ExecContext(ctx, query,
		namespace, item.Key,
		serializeVector(item.Vector), len(item.Vector),
		item.Text, metadataJSON, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store vector: %w", err)
	}
	return nil
}

// Get retrieves an item by (namespace, key).
func (idx *SQLiteIndex) Get(ctx context.Context, namespace, key string) (*Item, error) {
	if namespace == "" || key == "" {
		return nil, fmt.Errorf("%w: namespace and key are required", ErrInvalidInput)
	}

	var (
		blob         []byte
		dimension    int
		text         sql.NullString
		metadataJSON sql.NullString
		updatedAt    time.Time
	)
	err := idx.db.QueryRowContext(ctx, `
		SELECT vector, dimension, text, metadata, updated_at
		FROM embeddings WHERE namespace = ? AND key = ?
	`, namespace, key).Scan(&blob, &dimension, &text, &metadataJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vector: %w", err)
	}

	vec, err := deserializeVector(blob, dimension)
	if err != nil {
		return nil, err
	}

	item := &Item{Key: key, Vector: vec, Text: text.String, UpdatedAt: updatedAt}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &item.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return item, nil
}

// Delete removes an item by (namespace, key).
func (idx *SQLiteIndex) Delete(ctx context.Context, namespace, key string) error {
	if namespace == "" || key == "" {
		return fmt.Errorf("%w: namespace and key are required", ErrInvalidInput)
	}
	result, err := idx.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE namespace = ? AND key = ?", namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete vector: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Query scans the namespace's candidates and scores them by cosine
// similarity, best first.
func (idx *SQLiteIndex) Query(ctx context.Context, namespace string, query []float32, opts QueryOptions) ([]Match, error) {
	if namespace == "" {
		return nil, fmt.Errorf("%w: namespace is required", ErrInvalidInput)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector cannot be empty", ErrInvalidInput)
	}
	opts.Normalize()

	rows, err := idx.db.QueryContext(ctx, `
		SELECT key, vector, dimension, text, metadata
		FROM embeddings WHERE namespace = ?
		LIMIT ?
	`, namespace, vectorSearchMaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			key          string
			blob         []byte
			dimension    int
			text         sql.NullString
			metadataJSON sql.NullString
		)
		if err := rows.Scan(&key, &blob, &dimension, &text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if dimension != len(query) {
			// Stale row from an older embedding model; skip rather
			// than fail the whole query.
			continue
		}
		vec, err := deserializeVector(blob, dimension)
		if err != nil {
			return nil, err
		}

		score := CosineSimilarity(query, vec)
		if score < opts.MinScore {
			continue
		}

		match := Match{Key: key, Score: score, Text: text.String}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &match.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		if !metadataMatches(match.Metadata, opts.Filter) {
			continue
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

// Count returns the number of items in the namespace.
func (idx *SQLiteIndex) Count(ctx context.Context, namespace string) (int, error) {
	if namespace == "" {
		return 0, fmt.Errorf("%w: namespace is required", ErrInvalidInput)
	}
	var count int
	err := idx.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embeddings WHERE namespace = ?", namespace).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}

// serializeVector converts a float32 slice to little-endian bytes.
func serializeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts little-endian bytes back to a float32 slice.
func deserializeVector(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 || len(buf) != dimension*4 {
		return nil, fmt.Errorf("%w: buffer size %d for dimension %d", ErrDimensionMismatch, len(buf), dimension)
	}
	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
