// Package graph implements the knowledge-graph core: entity and
// relationship stores with merge semantics, contradiction tracking, the
// entity embedding index, and the query engine over all of them.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

// EntityInput is one assertion about an entity. Repeated assertions of the
// same (Name, Type) key merge into the existing entity instead of creating
// a duplicate.
type EntityInput struct {
	Name       string
	Type       string
	Properties types.Properties
	Confidence float64 // 0 means unspecified; the default applies
	Sources    []string
}

// EntityStore owns entity lifecycle and merge semantics. Conflicting
// property values are forwarded to the contradiction tracker before being
// overwritten, and the embedding index is kept in sync with entity
// creation and deletion.
type EntityStore struct {
	store   storage.EntityStore
	tracker *ContradictionTracker
	index   *EmbeddingIndex // nil disables embedding maintenance
	locks   *keyedMutex
}

// NewEntityStore creates an entity store. index may be nil when no vector
// backend is configured.
func NewEntityStore(store storage.EntityStore, tracker *ContradictionTracker, index *EmbeddingIndex) *EntityStore {
	return &EntityStore{
		store:   store,
		tracker: tracker,
		index:   index,
		locks:   newKeyedMutex(),
	}
}

// Upsert asserts an entity. A new (Name, Type) key creates an entity; an
// existing key merges in place:
//
//   - new property keys are added
//   - conflicting values for an existing key are recorded as contradictions
//     and then overwritten by the new value
//   - sources union, confidence takes the max of old and new
//
// Merges for the same key are serialised so concurrent assertions cannot
// lose each other's properties.
func (s *EntityStore) Upsert(ctx context.Context, input EntityInput) (*types.Entity, error) {
	entity, _, err := s.upsert(ctx, input, true)
	return entity, err
}

// UpsertBatch asserts a batch of entities with Upsert semantics per input.
// Newly created entities are embedded in a single embedder call. The batch
// stops at the first failing input.
func (s *EntityStore) UpsertBatch(ctx context.Context, inputs []EntityInput) ([]*types.Entity, error) {
	entities := make([]*types.Entity, 0, len(inputs))
	var created []*types.Entity

	for _, input := range inputs {
		entity, isNew, err := s.upsert(ctx, input, false)
		if err != nil {
			return nil, fmt.Errorf("batch upsert failed at %q: %w", input.Name, err)
		}
		entities = append(entities, entity)
		if isNew {
			created = append(created, entity)
		}
	}

	if s.index != nil && len(created) > 0 {
		s.index.IndexEntities(ctx, created)
	}
	return entities, nil
}

func (s *EntityStore) upsert(ctx context.Context, input EntityInput, indexNow bool) (*types.Entity, bool, error) {
	if input.Name == "" || input.Type == "" {
		return nil, false, fmt.Errorf("%w: entity name and type are required", storage.ErrInvalidInput)
	}

	confidence := input.Confidence
	if confidence == 0 {
		confidence = types.DefaultConfidence
	}
	confidence = types.ClampConfidence(confidence)

	unlock := s.locks.Lock(input.Name + "\x00" + input.Type)
	defer unlock()

	existing, err := s.store.GetEntityByKey(ctx, input.Name, input.Type)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	if existing == nil {
		entity, err := s.create(ctx, input, confidence, indexNow)
		return entity, err == nil, err
	}
	entity, err := s.merge(ctx, existing, input, confidence)
	return entity, false, err
}

func (s *EntityStore) create(ctx context.Context, input EntityInput, confidence float64, indexNow bool) (*types.Entity, error) {
	// Unknown types are stored as-is; the log line helps spot extractor
	// drift without rejecting anything.
	if !types.IsKnownEntityType(input.Type) {
		log.Printf("graph: unfamiliar entity type %q for %s", input.Type, input.Name)
	}

	now := time.Now()
	entity := &types.Entity{
		ID:         "ent:" + uuid.NewString(),
		Name:       input.Name,
		Type:       input.Type,
		Properties: input.Properties.Clone(),
		Confidence: confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	entity.MergeSources(input.Sources)

	if err := s.store.PutEntity(ctx, entity); err != nil {
		return nil, err
	}
	if indexNow && s.index != nil {
		s.index.IndexEntity(ctx, entity)
	}
	return entity, nil
}

func (s *EntityStore) merge(ctx context.Context, existing *types.Entity, input EntityInput, confidence float64) (*types.Entity, error) {
	if existing.Properties == nil && len(input.Properties) > 0 {
		existing.Properties = make(types.Properties, len(input.Properties))
	}

	for key, newValue := range input.Properties {
		oldValue, present := existing.Properties[key]
		if present && !oldValue.Equal(newValue) {
			// Record the conflict before the new value wins.
			_, err := s.tracker.Record(ctx, existing.ID, key,
				oldValue, newValue,
				existing.Sources, input.Sources,
				existing.Confidence, confidence)
			if err != nil {
				return nil, err
			}
		}
		existing.Properties[key] = newValue
	}

	existing.MergeSources(input.Sources)
	if confidence > existing.Confidence {
		existing.Confidence = confidence
	}
	existing.UpdatedAt = time.Now()

	if err := s.store.PutEntity(ctx, existing); err != nil {
		return nil, err
	}
	// Name and type are the merge key, so the canonical embedding text is
	// unchanged; no re-index needed here.
	return existing, nil
}

// Get retrieves an entity by ID.
func (s *EntityStore) Get(ctx context.Context, id string) (*types.Entity, error) {
	return s.store.GetEntity(ctx, id)
}

// GetByKey retrieves an entity by its (name, type) identity key.
func (s *EntityStore) GetByKey(ctx context.Context, name, entityType string) (*types.Entity, error) {
	return s.store.GetEntityByKey(ctx, name, entityType)
}

// List retrieves entities matching the filter.
func (s *EntityStore) List(ctx context.Context, filter storage.EntityFilter) ([]*types.Entity, error) {
	return s.store.ListEntities(ctx, filter)
}

// SetProperty overwrites a single property without contradiction tracking.
// Used when resolving a contradiction applies the chosen value.
func (s *EntityStore) SetProperty(ctx context.Context, entityID, key string, value types.PropertyValue) (*types.Entity, error) {
	if entityID == "" || key == "" {
		return nil, fmt.Errorf("%w: entity ID and property key are required", storage.ErrInvalidInput)
	}

	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(entity.Name + "\x00" + entity.Type)
	defer unlock()

	// Re-read under the lock; a concurrent merge may have run.
	entity, err = s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if entity.Properties == nil {
		entity.Properties = make(types.Properties, 1)
	}
	entity.Properties[key] = value
	entity.UpdatedAt = time.Now()

	if err := s.store.PutEntity(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// Delete removes an entity, its incident relationships (via the storage
// layer) and its embedding.
func (s *EntityStore) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteEntity(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		s.index.RemoveEntity(ctx, id)
	}
	return nil
}
