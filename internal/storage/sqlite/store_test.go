package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testEntity(id, name, entityType string) *types.Entity {
	return &types.Entity{
		ID:         id,
		Name:       name,
		Type:       entityType,
		Confidence: types.DefaultConfidence,
		Sources:    []string{"test"},
	}
}

func TestEntityRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entity := testEntity("ent:1", "Alice", types.EntityTypePerson)
	entity.Properties = types.Properties{
		"role": types.StringValue("engineer"),
		"age":  types.NumberValue(34),
	}

	if err := store.PutEntity(ctx, entity); err != nil {
		t.Fatalf("PutEntity() error: %v", err)
	}

	got, err := store.GetEntity(ctx, "ent:1")
	if err != nil {
		t.Fatalf("GetEntity() error: %v", err)
	}
	if got.Name != "Alice" || got.Type != types.EntityTypePerson {
		t.Errorf("got %s/%s, want Alice/person", got.Name, got.Type)
	}
	if !got.Properties["role"].Equal(types.StringValue("engineer")) {
		t.Errorf("role = %v, want engineer", got.Properties["role"])
	}
	if !got.Properties["age"].Equal(types.NumberValue(34)) {
		t.Errorf("age = %v, want 34", got.Properties["age"])
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on store")
	}
}

func TestGetEntityNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEntity(context.Background(), "ent:missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetEntityByKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutEntity(ctx, testEntity("ent:1", "Atlas", types.EntityTypeProject)); err != nil {
		t.Fatalf("PutEntity() error: %v", err)
	}
	// Same name, different type is a different identity key.
	if err := store.PutEntity(ctx, testEntity("ent:2", "Atlas", types.EntityTypeTool)); err != nil {
		t.Fatalf("PutEntity() error: %v", err)
	}

	got, err := store.GetEntityByKey(ctx, "Atlas", types.EntityTypeProject)
	if err != nil {
		t.Fatalf("GetEntityByKey() error: %v", err)
	}
	if got.ID != "ent:1" {
		t.Errorf("ID = %s, want ent:1", got.ID)
	}

	if _, err := store.GetEntityByKey(ctx, "Atlas", types.EntityTypePerson); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListEntitiesFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := testEntity("ent:1", "Alice Johnson", types.EntityTypePerson)
	alice.Confidence = 0.9
	bob := testEntity("ent:2", "Bob", types.EntityTypePerson)
	bob.Confidence = 0.4
	atlas := testEntity("ent:3", "Atlas", types.EntityTypeProject)
	atlas.Properties = types.Properties{"status": types.StringValue("active")}

	for _, e := range []*types.Entity{alice, bob, atlas} {
		if err := store.PutEntity(ctx, e); err != nil {
			t.Fatalf("PutEntity(%s) error: %v", e.ID, err)
		}
	}

	got, err := store.ListEntities(ctx, storage.EntityFilter{Types: []string{types.EntityTypePerson}})
	if err != nil {
		t.Fatalf("ListEntities() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("type filter returned %d entities, want 2", len(got))
	}

	got, err = store.ListEntities(ctx, storage.EntityFilter{NameContains: "john"})
	if err != nil {
		t.Fatalf("ListEntities() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ent:1" {
		t.Errorf("name filter returned %v, want just ent:1", got)
	}

	got, err = store.ListEntities(ctx, storage.EntityFilter{Names: []string{"Alice Johnson"}})
	if err != nil {
		t.Fatalf("ListEntities() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ent:1" {
		t.Errorf("exact-name filter returned %v, want just ent:1", got)
	}

	got, err = store.ListEntities(ctx, storage.EntityFilter{MinConfidence: 0.8})
	if err != nil {
		t.Fatalf("ListEntities() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ent:1" {
		t.Errorf("confidence filter returned %d entities, want just ent:1", len(got))
	}

	got, err = store.ListEntities(ctx, storage.EntityFilter{
		PropertyKey:   "status",
		PropertyValue: "active",
	})
	if err != nil {
		t.Fatalf("ListEntities() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ent:3" {
		t.Errorf("property filter returned %d entities, want just ent:3", len(got))
	}
}

func TestListEntitiesPropertyFilterIgnoresLimitWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Only the lowest-confidence entity carries the property, so it ranks
	// below a limit-sized window of the unfiltered ordering.
	high := testEntity("ent:1", "Alpha", types.EntityTypeProject)
	high.Confidence = 0.9
	mid := testEntity("ent:2", "Beta", types.EntityTypeProject)
	mid.Confidence = 0.8
	low := testEntity("ent:3", "Gamma", types.EntityTypeProject)
	low.Confidence = 0.3
	low.Properties = types.Properties{"city": types.StringValue("Oslo")}

	for _, e := range []*types.Entity{high, mid, low} {
		if err := store.PutEntity(ctx, e); err != nil {
			t.Fatalf("PutEntity(%s) error: %v", e.ID, err)
		}
	}

	got, err := store.ListEntities(ctx, storage.EntityFilter{
		PropertyKey:   "city",
		PropertyValue: "Oslo",
		Limit:         2,
	})
	if err != nil {
		t.Fatalf("ListEntities() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ent:3" {
		t.Errorf("property filter returned %v, want just ent:3", got)
	}
}

func TestListMemoriesTagFilterIgnoresLimitWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	// The tagged memory is the oldest, so an unfiltered limit-sized window
	// would never reach it.
	for i, mem := range []*types.EpisodicMemory{
		{ID: "mem:1", Timestamp: now, Content: "newest note"},
		{ID: "mem:2", Timestamp: now.Add(-time.Hour), Content: "middle note"},
		{ID: "mem:3", Timestamp: now.Add(-2 * time.Hour), Content: "tagged note", Tags: []string{"personal"}},
	} {
		if err := store.PutMemory(ctx, mem); err != nil {
			t.Fatalf("PutMemory(%d) error: %v", i, err)
		}
	}

	got, err := store.ListMemories(ctx, storage.MemoryFilter{
		Tags:  []string{"personal"},
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("ListMemories() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "mem:3" {
		t.Errorf("tag filter returned %v, want just mem:3", got)
	}
}

func TestDeleteEntityCascadesRelationships(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutEntity(ctx, testEntity("ent:1", "Alice", types.EntityTypePerson)); err != nil {
		t.Fatalf("PutEntity() error: %v", err)
	}
	if err := store.PutEntity(ctx, testEntity("ent:2", "Atlas", types.EntityTypeProject)); err != nil {
		t.Fatalf("PutEntity() error: %v", err)
	}
	rel := &types.Relationship{
		ID:         "rel:1",
		SourceID:   "ent:1",
		TargetID:   "ent:2",
		Type:       types.RelWorksOn,
		Confidence: 0.8,
	}
	if err := store.PutRelationship(ctx, rel); err != nil {
		t.Fatalf("PutRelationship() error: %v", err)
	}

	if err := store.DeleteEntity(ctx, "ent:1"); err != nil {
		t.Fatalf("DeleteEntity() error: %v", err)
	}

	if _, err := store.GetRelationship(ctx, "rel:1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("relationship should cascade on entity delete, got err = %v", err)
	}

	if err := store.DeleteEntity(ctx, "ent:1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestPutRelationshipMissingEndpoint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutEntity(ctx, testEntity("ent:1", "Alice", types.EntityTypePerson)); err != nil {
		t.Fatalf("PutEntity() error: %v", err)
	}

	rel := &types.Relationship{
		ID:         "rel:1",
		SourceID:   "ent:1",
		TargetID:   "ent:ghost",
		Type:       types.RelKnows,
		Confidence: 0.5,
	}
	if err := store.PutRelationship(ctx, rel); !errors.Is(err, storage.ErrMissingEndpoint) {
		t.Errorf("err = %v, want ErrMissingEndpoint", err)
	}
}

func TestRelationshipKeyLookupAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, e := range []*types.Entity{
		testEntity("ent:1", "Alice", types.EntityTypePerson),
		testEntity("ent:2", "Bob", types.EntityTypePerson),
		testEntity("ent:3", "Atlas", types.EntityTypeProject),
	} {
		if err := store.PutEntity(ctx, e); err != nil {
			t.Fatalf("PutEntity() error: %v", err)
		}
	}

	rels := []*types.Relationship{
		{ID: "rel:1", SourceID: "ent:1", TargetID: "ent:2", Type: types.RelKnows, Confidence: 0.6},
		{ID: "rel:2", SourceID: "ent:1", TargetID: "ent:3", Type: types.RelWorksOn, Confidence: 0.9},
		{ID: "rel:3", SourceID: "ent:2", TargetID: "ent:3", Type: types.RelWorksOn, Confidence: 0.7},
	}
	for _, r := range rels {
		if err := store.PutRelationship(ctx, r); err != nil {
			t.Fatalf("PutRelationship(%s) error: %v", r.ID, err)
		}
	}

	got, err := store.GetRelationshipByKey(ctx, "ent:1", "ent:3", types.RelWorksOn)
	if err != nil {
		t.Fatalf("GetRelationshipByKey() error: %v", err)
	}
	if got.ID != "rel:2" {
		t.Errorf("ID = %s, want rel:2", got.ID)
	}

	// EntityID filter matches either endpoint.
	list, err := store.ListRelationships(ctx, storage.RelationshipFilter{EntityID: "ent:3"})
	if err != nil {
		t.Fatalf("ListRelationships() error: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("entity filter returned %d relationships, want 2", len(list))
	}

	list, err = store.ListRelationships(ctx, storage.RelationshipFilter{
		EntityID: "ent:1",
		Types:    []string{types.RelKnows},
	})
	if err != nil {
		t.Fatalf("ListRelationships() error: %v", err)
	}
	if len(list) != 1 || list[0].ID != "rel:1" {
		t.Errorf("type filter returned %v, want just rel:1", list)
	}

	// Directional filters pin one endpoint each.
	list, err = store.ListRelationships(ctx, storage.RelationshipFilter{SourceID: "ent:1"})
	if err != nil {
		t.Fatalf("ListRelationships() error: %v", err)
	}
	for _, rel := range list {
		if rel.SourceID != "ent:1" {
			t.Errorf("source filter returned relationship from %s", rel.SourceID)
		}
	}

	list, err = store.ListRelationships(ctx, storage.RelationshipFilter{TargetID: "ent:3"})
	if err != nil {
		t.Fatalf("ListRelationships() error: %v", err)
	}
	for _, rel := range list {
		if rel.TargetID != "ent:3" {
			t.Errorf("target filter returned relationship to %s", rel.TargetID)
		}
	}
}

func TestContradictionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutEntity(ctx, testEntity("ent:1", "Alice", types.EntityTypePerson)); err != nil {
		t.Fatalf("PutEntity() error: %v", err)
	}

	c := &types.Contradiction{
		ID:            "con:1",
		EntityID:      "ent:1",
		PropertyKey:   "city",
		OldValue:      types.StringValue("Oslo"),
		NewValue:      types.StringValue("Bergen"),
		OldSources:    []string{"chat:1"},
		NewSources:    []string{"chat:2"},
		OldConfidence: 0.7,
		NewConfidence: 0.8,
		Status:        types.ContradictionUnresolved,
	}
	if err := store.PutContradiction(ctx, c); err != nil {
		t.Fatalf("PutContradiction() error: %v", err)
	}

	got, err := store.GetContradiction(ctx, "con:1")
	if err != nil {
		t.Fatalf("GetContradiction() error: %v", err)
	}
	if !got.OldValue.Equal(types.StringValue("Oslo")) || !got.NewValue.Equal(types.StringValue("Bergen")) {
		t.Errorf("values = %v / %v, want Oslo / Bergen", got.OldValue, got.NewValue)
	}
	if got.Status != types.ContradictionUnresolved {
		t.Errorf("status = %s, want unresolved", got.Status)
	}
	if got.ResolvedValue != nil || got.ResolvedAt != nil {
		t.Error("unresolved record should not carry resolution fields")
	}

	// Resolve via upsert.
	resolved := types.StringValue("Bergen")
	now := time.Now()
	c.Status = types.ContradictionResolved
	c.ResolvedValue = &resolved
	c.ResolvedAt = &now
	if err := store.PutContradiction(ctx, c); err != nil {
		t.Fatalf("PutContradiction(resolve) error: %v", err)
	}

	got, err = store.GetContradiction(ctx, "con:1")
	if err != nil {
		t.Fatalf("GetContradiction() error: %v", err)
	}
	if got.Status != types.ContradictionResolved {
		t.Errorf("status = %s, want resolved", got.Status)
	}
	if got.ResolvedValue == nil || !got.ResolvedValue.Equal(resolved) {
		t.Errorf("resolved value = %v, want Bergen", got.ResolvedValue)
	}
	if got.ResolvedAt == nil {
		t.Error("resolved_at should be set")
	}
}

func TestListContradictionsOrderAndFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutEntity(ctx, testEntity("ent:1", "Alice", types.EntityTypePerson)); err != nil {
		t.Fatalf("PutEntity() error: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	for i, status := range []types.ContradictionStatus{
		types.ContradictionUnresolved,
		types.ContradictionResolved,
		types.ContradictionUnresolved,
	} {
		c := &types.Contradiction{
			ID:          "con:" + string(rune('a'+i)),
			EntityID:    "ent:1",
			PropertyKey: "city",
			OldValue:    types.StringValue("x"),
			NewValue:    types.StringValue("y"),
			Status:      status,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.PutContradiction(ctx, c); err != nil {
			t.Fatalf("PutContradiction() error: %v", err)
		}
	}

	all, err := store.ListContradictions(ctx, "ent:1", false)
	if err != nil {
		t.Fatalf("ListContradictions() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d contradictions, want 3", len(all))
	}
	if all[0].ID != "con:a" {
		t.Errorf("first record = %s, want con:a (oldest first)", all[0].ID)
	}

	unresolved, err := store.ListContradictions(ctx, "ent:1", true)
	if err != nil {
		t.Fatalf("ListContradictions(unresolved) error: %v", err)
	}
	if len(unresolved) != 2 {
		t.Errorf("got %d unresolved, want 2", len(unresolved))
	}
}

func TestMemoryRoundTripAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	memories := []*types.EpisodicMemory{
		{
			ID: "mem:1", Timestamp: now.Add(-5 * time.Minute),
			Content: "discussed the launch plan", Importance: 0.9,
			Source: "chat", Tags: []string{"work", "launch"},
		},
		{
			ID: "mem:2", Timestamp: now.Add(-2 * time.Hour),
			Content: "lunch at the harbour", Importance: 0.3,
			Source: "calendar", Tags: []string{"personal"},
		},
		{
			ID: "mem:3", Timestamp: now.Add(-30 * 24 * time.Hour),
			Content: "joined the platform team", Importance: 0.8,
			Source: "chat", Tags: []string{"work"},
		},
	}
	for _, m := range memories {
		if err := store.PutMemory(ctx, m); err != nil {
			t.Fatalf("PutMemory(%s) error: %v", m.ID, err)
		}
	}

	got, err := store.ListMemories(ctx, storage.MemoryFilter{Since: now.Add(-6 * time.Hour)})
	if err != nil {
		t.Fatalf("ListMemories() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("since filter returned %d memories, want 2", len(got))
	}
	if got[0].ID != "mem:1" {
		t.Errorf("first memory = %s, want mem:1 (newest first)", got[0].ID)
	}

	got, err = store.ListMemories(ctx, storage.MemoryFilter{Tags: []string{"personal"}})
	if err != nil {
		t.Fatalf("ListMemories() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "mem:2" {
		t.Errorf("tag filter returned %v, want just mem:2", got)
	}

	got, err = store.ListMemories(ctx, storage.MemoryFilter{Sources: []string{"chat"}})
	if err != nil {
		t.Fatalf("ListMemories() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("source filter returned %d memories, want 2", len(got))
	}

	if err := store.DeleteMemory(ctx, "mem:2"); err != nil {
		t.Fatalf("DeleteMemory() error: %v", err)
	}
	if _, err := store.GetMemory(ctx, "mem:2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, e := range []*types.Entity{
		testEntity("ent:1", "Alice", types.EntityTypePerson),
		testEntity("ent:2", "Bob", types.EntityTypePerson),
		testEntity("ent:3", "Atlas", types.EntityTypeProject),
	} {
		if err := store.PutEntity(ctx, e); err != nil {
			t.Fatalf("PutEntity() error: %v", err)
		}
	}
	rel := &types.Relationship{
		ID: "rel:1", SourceID: "ent:1", TargetID: "ent:3",
		Type: types.RelWorksOn, Confidence: 0.9,
	}
	if err := store.PutRelationship(ctx, rel); err != nil {
		t.Fatalf("PutRelationship() error: %v", err)
	}
	c := &types.Contradiction{
		ID: "con:1", EntityID: "ent:1", PropertyKey: "city",
		OldValue: types.StringValue("a"), NewValue: types.StringValue("b"),
	}
	if err := store.PutContradiction(ctx, c); err != nil {
		t.Fatalf("PutContradiction() error: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.EntityCount != 3 {
		t.Errorf("EntityCount = %d, want 3", stats.EntityCount)
	}
	if stats.EntitiesByType[types.EntityTypePerson] != 2 {
		t.Errorf("person count = %d, want 2", stats.EntitiesByType[types.EntityTypePerson])
	}
	if stats.RelationshipCount != 1 {
		t.Errorf("RelationshipCount = %d, want 1", stats.RelationshipCount)
	}
	if stats.ContradictionCount != 1 || stats.UnresolvedContradictions != 1 {
		t.Errorf("contradiction counts = %d/%d, want 1/1",
			stats.ContradictionCount, stats.UnresolvedContradictions)
	}
}
