package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

// RelationshipInput is one assertion about an edge between two entities.
// Repeated assertions of the same (SourceID, TargetID, Type) key merge into
// the existing relationship.
type RelationshipInput struct {
	SourceID   string
	TargetID   string
	Type       string
	Properties types.Properties
	Confidence float64 // 0 means unspecified; the default applies
	Sources    []string
}

// RelationshipStore owns relationship lifecycle. Both endpoints must exist
// at assertion time; merge semantics mirror the entity store's, minus
// contradiction tracking (edge properties are descriptive, not identity
// facts).
type RelationshipStore struct {
	store    storage.RelationshipStore
	entities storage.EntityStore
	locks    *keyedMutex
}

// NewRelationshipStore creates a relationship store. The entity store is
// used for endpoint validation.
func NewRelationshipStore(store storage.RelationshipStore, entities storage.EntityStore) *RelationshipStore {
	return &RelationshipStore{
		store:    store,
		entities: entities,
		locks:    newKeyedMutex(),
	}
}

// Upsert asserts a relationship. Missing endpoints yield ErrMissingEndpoint;
// an existing (source, target, type) key merges properties, unions sources
// and takes the max confidence.
func (s *RelationshipStore) Upsert(ctx context.Context, input RelationshipInput) (*types.Relationship, error) {
	if input.SourceID == "" || input.TargetID == "" || input.Type == "" {
		return nil, fmt.Errorf("%w: relationship source, target and type are required", storage.ErrInvalidInput)
	}

	// Validate endpoints before writing; the foreign keys would also catch
	// this, but an explicit check gives the caller the offending ID.
	if _, err := s.entities.GetEntity(ctx, input.SourceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: source %s", storage.ErrMissingEndpoint, input.SourceID)
		}
		return nil, err
	}
	if _, err := s.entities.GetEntity(ctx, input.TargetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: target %s", storage.ErrMissingEndpoint, input.TargetID)
		}
		return nil, err
	}

	confidence := input.Confidence
	if confidence == 0 {
		confidence = types.DefaultConfidence
	}
	confidence = types.ClampConfidence(confidence)

	unlock := s.locks.Lock(input.SourceID + "\x00" + input.TargetID + "\x00" + input.Type)
	defer unlock()

	existing, err := s.store.GetRelationshipByKey(ctx, input.SourceID, input.TargetID, input.Type)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	if existing == nil {
		rel := &types.Relationship{
			ID:         "rel:" + uuid.NewString(),
			SourceID:   input.SourceID,
			TargetID:   input.TargetID,
			Type:       input.Type,
			Properties: input.Properties.Clone(),
			Confidence: confidence,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		rel.MergeSources(input.Sources)
		if err := s.store.PutRelationship(ctx, rel); err != nil {
			return nil, err
		}
		return rel, nil
	}

	if existing.Properties == nil && len(input.Properties) > 0 {
		existing.Properties = make(types.Properties, len(input.Properties))
	}
	for key, value := range input.Properties {
		existing.Properties[key] = value
	}
	existing.MergeSources(input.Sources)
	if confidence > existing.Confidence {
		existing.Confidence = confidence
	}
	existing.UpdatedAt = now

	if err := s.store.PutRelationship(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Get retrieves a relationship by ID.
func (s *RelationshipStore) Get(ctx context.Context, id string) (*types.Relationship, error) {
	return s.store.GetRelationship(ctx, id)
}

// List retrieves relationships matching the filter.
func (s *RelationshipStore) List(ctx context.Context, filter storage.RelationshipFilter) ([]*types.Relationship, error) {
	return s.store.ListRelationships(ctx, filter)
}

// ForEntity returns the relationships touching the entity as either
// endpoint, up to limit.
func (s *RelationshipStore) ForEntity(ctx context.Context, entityID string, limit int) ([]*types.Relationship, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}
	return s.store.ListRelationships(ctx, storage.RelationshipFilter{
		EntityID: entityID,
		Limit:    limit,
	})
}

// FromSource returns relationships originating at the entity.
func (s *RelationshipStore) FromSource(ctx context.Context, sourceID string, limit int) ([]*types.Relationship, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("%w: source ID is required", storage.ErrInvalidInput)
	}
	return s.store.ListRelationships(ctx, storage.RelationshipFilter{
		SourceID: sourceID,
		Limit:    limit,
	})
}

// ToTarget returns relationships arriving at the entity.
func (s *RelationshipStore) ToTarget(ctx context.Context, targetID string, limit int) ([]*types.Relationship, error) {
	if targetID == "" {
		return nil, fmt.Errorf("%w: target ID is required", storage.ErrInvalidInput)
	}
	return s.store.ListRelationships(ctx, storage.RelationshipFilter{
		TargetID: targetID,
		Limit:    limit,
	})
}

// Between returns relationships connecting the two entities in either
// direction.
func (s *RelationshipStore) Between(ctx context.Context, entityA, entityB string, limit int) ([]*types.Relationship, error) {
	if entityA == "" || entityB == "" {
		return nil, fmt.Errorf("%w: both entity IDs are required", storage.ErrInvalidInput)
	}

	forward, err := s.store.ListRelationships(ctx, storage.RelationshipFilter{
		SourceID: entityA,
		TargetID: entityB,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	if entityA == entityB {
		return forward, nil
	}

	backward, err := s.store.ListRelationships(ctx, storage.RelationshipFilter{
		SourceID: entityB,
		TargetID: entityA,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	combined := append(forward, backward...)
	if limit > 0 && len(combined) > limit {
		combined = combined[:limit]
	}
	return combined, nil
}

// Delete removes a relationship by ID.
func (s *RelationshipStore) Delete(ctx context.Context, id string) error {
	return s.store.DeleteRelationship(ctx, id)
}
