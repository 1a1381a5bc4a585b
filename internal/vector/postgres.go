package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"
)

// postgresSchema creates the embeddings table with a pgvector column. The
// dimension is fixed per deployment by the embedding model in use.
const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS embeddings (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    embedding vector(%d) NOT NULL,
    text TEXT,
    metadata JSONB,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_embeddings_namespace ON embeddings(namespace);
`

// PostgresIndex implements Index on PostgreSQL with the pgvector extension.
// Similarity search runs in the database via the cosine distance operator,
// so it scales past the in-process scan of the SQLite backend.
type PostgresIndex struct {
	db        *sql.DB
	dimension int
}

var _ Index = (*PostgresIndex)(nil)

// NewPostgresIndex opens a PostgreSQL connection and ensures the embeddings
// schema exists for vectors of the given dimension.
func NewPostgresIndex(dsn string, dimension int) (*PostgresIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidInput)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf(postgresSchema, dimension)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresIndex{db: db, dimension: dimension}, nil
}

// Close releases the database connection.
func (idx *PostgresIndex) Close() error {
	return idx.db.Close()
}

// Upsert inserts or replaces an item under (namespace, key).
func (idx *PostgresIndex) Upsert(ctx context.Context, namespace string, item Item) error {
	if namespace == "" || item.Key == "" {
		return fmt.Errorf("%w: namespace and key are required", ErrInvalidInput)
	}
	if len(item.Vector) != idx.dimension {
		return fmt.Errorf("%w: got %d, index expects %d", ErrDimensionMismatch, len(item.Vector), idx.dimension)
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
		INSERT INTO embeddings (namespace, key, embedding, text, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (namespace, key) DO UPDATE SET
			embedding = excluded.embedding,
			text = excluded.text,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`
	_, err := idx.db.ExecContext(ctx, query,
		namespace, item.Key, pgvector.NewVector(item.Vector),
		item.Text, metadataJSON, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store vector: %w", err)
	}
	return nil
}

// Get retrieves an item by (namespace, key).
func (idx *PostgresIndex) Get(ctx context.Context, namespace, key string) (*Item, error) {
	if namespace == "" || key == "" {
		return nil, fmt.Errorf("%w: namespace and key are required", ErrInvalidInput)
	}

	var (
		vec          pgvector.Vector
		text         sql.NullString
		metadataJSON sql.NullString
		updatedAt    time.Time
	)
	err := idx.db.QueryRowContext(ctx, `
		SELECT embedding, text, metadata, updated_at
		FROM embeddings WHERE namespace = $1 AND key = $2
	`, namespace, key).Scan(&vec, &text, &metadataJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vector: %w", err)
	}

	item := &Item{Key: key, Vector: vec.Slice(), Text: text.String, UpdatedAt: updatedAt}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &item.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return item, nil
}

// Delete removes an item by (namespace, key).
func (idx *PostgresIndex) Delete(ctx context.Context, namespace, key string) error {
	if namespace == "" || key == "" {
		return fmt.Errorf("%w: namespace and key are required", ErrInvalidInput)
	}
	result, err := idx.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE namespace = $1 AND key = $2", namespace, key)
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

// Query delegates nearest-neighbour search to pgvector's cosine distance
// operator. Distance d maps to similarity 1 - d/2, matching the [0, 1]
// normalisation of the in-process backend.
func (idx *PostgresIndex) Query(ctx context.Context, namespace string, query []float32, opts QueryOptions) ([]Match, error) {
	if namespace == "" {
		return nil, fmt.Errorf("%w: namespace is required", ErrInvalidInput)
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: got %d, index expects %d", ErrDimensionMismatch, len(query), idx.dimension)
	}
	opts.Normalize()

	where := "namespace = $2"
	args := []interface{}{pgvector.NewVector(query), namespace}
	if len(opts.Filter) > 0 {
		filterJSON, err := json.Marshal(opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filter: %w", err)
		}
		args = append(args, string(filterJSON))
		where += fmt.Sprintf(" AND metadata @> $%d::jsonb", len(args))
	}
	args = append(args, opts.Limit)

	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT key, text, metadata, embedding <=> $1 AS distance
		FROM embeddings
		WHERE %s
		ORDER BY distance ASC
		LIMIT $%d
	`, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			key          string
			text         sql.NullString
			metadataJSON sql.NullString
			distance     float64
		)
		if err := rows.Scan(&key, &text, &metadataJSON, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}

		score := 1 - distance/2
		if score < opts.MinScore {
			continue
		}

		match := Match{Key: key, Score: score, Text: text.String}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &match.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// Count returns the number of items in the namespace.
func (idx *PostgresIndex) Count(ctx context.Context, namespace string) (int, error) {
	if namespace == "" {
		return 0, fmt.Errorf("%w: namespace is required", ErrInvalidInput)
	}
	var count int
	err := idx.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embeddings WHERE namespace = $1", namespace).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}
