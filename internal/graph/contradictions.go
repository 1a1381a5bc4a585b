package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

// ContradictionTracker records and resolves conflicting property assertions.
// At most one unresolved record exists per (entity, property key); nothing
// is auto-resolved.
type ContradictionTracker struct {
	store storage.ContradictionStore
}

// NewContradictionTracker creates a tracker over the given store.
func NewContradictionTracker(store storage.ContradictionStore) *ContradictionTracker {
	return &ContradictionTracker{store: store}
}

// Record persists a new unresolved contradiction and returns it. When an
// unresolved record already exists for (entityID, propertyKey) it is
// returned untouched: the first contradiction wins until explicitly
// resolved, so repeated flips of the same property do not pile up records.
func (t *ContradictionTracker) Record(ctx context.Context, entityID, propertyKey string, old, new types.PropertyValue, oldSources, newSources []string, oldConfidence, newConfidence float64) (*types.Contradiction, error) {
	if entityID == "" || propertyKey == "" {
		return nil, fmt.Errorf("%w: entity ID and property key are required", storage.ErrInvalidInput)
	}

	open, err := t.store.ListContradictions(ctx, entityID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to check open contradictions: %w", err)
	}
	for _, existing := range open {
		if existing.PropertyKey == propertyKey {
			return existing, nil
		}
	}

	c := &types.Contradiction{
		ID:            "con:" + uuid.NewString(),
		EntityID:      entityID,
		PropertyKey:   propertyKey,
		OldValue:      old,
		NewValue:      new,
		OldSources:    oldSources,
		NewSources:    newSources,
		OldConfidence: oldConfidence,
		NewConfidence: newConfidence,
		Status:        types.ContradictionUnresolved,
		CreatedAt:     time.Now(),
	}
	if err := t.store.PutContradiction(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to record contradiction: %w", err)
	}
	return c, nil
}

// Get retrieves a contradiction by ID.
func (t *ContradictionTracker) Get(ctx context.Context, id string) (*types.Contradiction, error) {
	return t.store.GetContradiction(ctx, id)
}

// List returns contradictions for an entity, oldest first. An empty entityID
// lists across all entities.
func (t *ContradictionTracker) List(ctx context.Context, entityID string, unresolvedOnly bool) ([]*types.Contradiction, error) {
	return t.store.ListContradictions(ctx, entityID, unresolvedOnly)
}

// Count returns the number of contradictions recorded for an entity. An
// empty entityID counts across all entities.
func (t *ContradictionTracker) Count(ctx context.Context, entityID string) (int, error) {
	all, err := t.store.ListContradictions(ctx, entityID, false)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// UnresolvedCount returns the number of open contradictions for an entity.
// An empty entityID counts across all entities.
func (t *ContradictionTracker) UnresolvedCount(ctx context.Context, entityID string) (int, error) {
	open, err := t.store.ListContradictions(ctx, entityID, true)
	if err != nil {
		return 0, err
	}
	return len(open), nil
}

// Resolve marks the unresolved contradiction for (entityID, propertyKey) as
// resolved with the chosen value. A subsequent conflicting merge may open a
// fresh record for the same key. Returns ErrNotFound when no unresolved
// contradiction matches.
func (t *ContradictionTracker) Resolve(ctx context.Context, entityID, propertyKey string, chosen types.PropertyValue) (*types.Contradiction, error) {
	if entityID == "" || propertyKey == "" {
		return nil, fmt.Errorf("%w: entity ID and property key are required", storage.ErrInvalidInput)
	}

	open, err := t.store.ListContradictions(ctx, entityID, true)
	if err != nil {
		return nil, err
	}

	for _, c := range open {
		if c.PropertyKey != propertyKey {
			continue
		}
		now := time.Now()
		c.Status = types.ContradictionResolved
		c.ResolvedValue = &chosen
		c.ResolvedAt = &now
		if err := t.store.PutContradiction(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to resolve contradiction: %w", err)
		}
		return c, nil
	}
	return nil, storage.ErrNotFound
}
