package vector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/voxmind/recollect/internal/storage/sqlite"
)

func newTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewSQLiteIndex(store.DB())
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}

	if got := CosineSimilarity(a, []float32{1, 0, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors = %v, want 1", got)
	}
	if got := CosineSimilarity(a, []float32{-1, 0, 0}); math.Abs(got) > 1e-9 {
		t.Errorf("opposite vectors = %v, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{0, 1, 0}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("orthogonal vectors = %v, want 0.5", got)
	}
	if got := CosineSimilarity(a, []float32{1, 0}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{0, 0, 0}); got != 0 {
		t.Errorf("zero vector = %v, want 0", got)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	item := Item{
		Key:      "entity:ent:1",
		Vector:   []float32{0.1, 0.2, 0.3},
		Text:     "Alice (person)",
		Metadata: map[string]string{"entity_type": "person"},
	}
	if err := idx.Upsert(ctx, "entities", item); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	got, err := idx.Get(ctx, "entities", "entity:ent:1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Text != "Alice (person)" {
		t.Errorf("Text = %q, want %q", got.Text, "Alice (person)")
	}
	if len(got.Vector) != 3 || got.Vector[1] != 0.2 {
		t.Errorf("Vector = %v, want [0.1 0.2 0.3]", got.Vector)
	}
	if got.Metadata["entity_type"] != "person" {
		t.Errorf("Metadata = %v, want entity_type=person", got.Metadata)
	}

	// Upsert replaces in place.
	item.Vector = []float32{1, 0, 0}
	item.Text = "Alice (organization)"
	if err := idx.Upsert(ctx, "entities", item); err != nil {
		t.Fatalf("Upsert(replace) error: %v", err)
	}
	got, err = idx.Get(ctx, "entities", "entity:ent:1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Text != "Alice (organization)" || got.Vector[0] != 1 {
		t.Errorf("replace did not take effect: %+v", got)
	}

	count, err := idx.Count(ctx, "entities")
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestIndexNamespacesAreIsolated(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Upsert(ctx, "entities", Item{Key: "k", Vector: []float32{1, 0}}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := idx.Upsert(ctx, "memories", Item{Key: "k", Vector: []float32{0, 1}}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	got, err := idx.Get(ctx, "entities", "k")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Vector[0] != 1 {
		t.Errorf("namespace collision: got %v", got.Vector)
	}

	if err := idx.Delete(ctx, "entities", "k"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := idx.Get(ctx, "memories", "k"); err != nil {
		t.Errorf("delete in one namespace removed the other: %v", err)
	}
}

func TestIndexQueryRanksByScore(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	items := []Item{
		{Key: "exact", Vector: []float32{1, 0, 0}},
		{Key: "close", Vector: []float32{0.9, 0.1, 0}},
		{Key: "orthogonal", Vector: []float32{0, 1, 0}},
		{Key: "opposite", Vector: []float32{-1, 0, 0}},
	}
	for _, item := range items {
		if err := idx.Upsert(ctx, "entities", item); err != nil {
			t.Fatalf("Upsert(%s) error: %v", item.Key, err)
		}
	}

	matches, err := idx.Query(ctx, "entities", []float32{1, 0, 0}, QueryOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(matches) != 4 {
		t.Fatalf("got %d matches, want 4", len(matches))
	}
	if matches[0].Key != "exact" || matches[1].Key != "close" {
		t.Errorf("order = %s, %s; want exact, close", matches[0].Key, matches[1].Key)
	}

	// MinScore drops the weak tail.
	matches, err = idx.Query(ctx, "entities", []float32{1, 0, 0}, QueryOptions{Limit: 10, MinScore: 0.6})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	for _, m := range matches {
		if m.Score < 0.6 {
			t.Errorf("match %s scored %v below MinScore", m.Key, m.Score)
		}
	}
	if len(matches) != 2 {
		t.Errorf("got %d matches above 0.6, want 2", len(matches))
	}

	// Limit truncates after ranking.
	matches, err = idx.Query(ctx, "entities", []float32{1, 0, 0}, QueryOptions{Limit: 1})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(matches) != 1 || matches[0].Key != "exact" {
		t.Errorf("limit 1 returned %v, want just exact", matches)
	}
}

func TestIndexQuerySkipsMismatchedDimensions(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Upsert(ctx, "entities", Item{Key: "old", Vector: []float32{1, 0}}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := idx.Upsert(ctx, "entities", Item{Key: "new", Vector: []float32{1, 0, 0}}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	matches, err := idx.Query(ctx, "entities", []float32{1, 0, 0}, QueryOptions{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(matches) != 1 || matches[0].Key != "new" {
		t.Errorf("got %v, want just the matching-dimension item", matches)
	}
}

func TestIndexNotFound(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if _, err := idx.Get(ctx, "entities", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() err = %v, want ErrNotFound", err)
	}
	if err := idx.Delete(ctx, "entities", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() err = %v, want ErrNotFound", err)
	}
}
