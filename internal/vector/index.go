// Package vector provides a namespaced vector index for similarity search.
//
// Two backends are available: a SQLite-backed index that scans candidates in
// process, and a PostgreSQL index that delegates nearest-neighbour search to
// pgvector. Both score by cosine similarity normalised into [0, 1].
package vector

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	// ErrNotFound indicates the requested item is not in the index.
	ErrNotFound = errors.New("vector item not found")

	// ErrInvalidInput indicates invalid index parameters.
	ErrInvalidInput = errors.New("invalid vector input")

	// ErrDimensionMismatch indicates a query or stored vector has the
	// wrong length for its namespace.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Item is one entry in the index.
type Item struct {
	Key       string
	Vector    []float32
	Text      string
	Metadata  map[string]string
	UpdatedAt time.Time
}

// Match is one similarity search result.
type Match struct {
	Key      string
	Score    float64 // Cosine similarity in [0, 1]
	Text     string
	Metadata map[string]string
}

// QueryOptions controls similarity search.
type QueryOptions struct {
	// Limit caps the number of matches (default: 10, max: 100).
	Limit int

	// MinScore drops matches scoring below the threshold.
	MinScore float64

	// Filter drops matches whose metadata does not carry every listed
	// key/value pair.
	Filter map[string]string
}

// Normalize applies defaults and validates the QueryOptions.
func (o *QueryOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 10
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.MinScore < 0 {
		o.MinScore = 0
	}
	if o.MinScore > 1 {
		o.MinScore = 1
	}
}

// Index is a namespaced vector store. Namespaces partition keys so entity
// embeddings and memory embeddings can share one backend without colliding.
type Index interface {
	// Upsert inserts or replaces an item under (namespace, item.Key).
	Upsert(ctx context.Context, namespace string, item Item) error

	// Get retrieves an item. Returns ErrNotFound when absent.
	Get(ctx context.Context, namespace, key string) (*Item, error)

	// Delete removes an item. Returns ErrNotFound when absent.
	Delete(ctx context.Context, namespace, key string) error

	// Query returns the items most similar to the given vector, best
	// score first.
	Query(ctx context.Context, namespace string, query []float32, opts QueryOptions) ([]Match, error)

	// Count returns the number of items in the namespace.
	Count(ctx context.Context, namespace string) (int, error)
}

// metadataMatches reports whether metadata carries every pair in filter.
// An empty filter matches everything.
func metadataMatches(metadata, filter map[string]string) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

// CosineSimilarity computes cosine similarity between two vectors, normalised
// from [-1, 1] into [0, 1]. Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cosine + 1) / 2
}
