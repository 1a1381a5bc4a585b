package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

// MemoryStore writes episodic memories and keeps their embeddings in sync.
// Each stored memory gets one vector in the index, embedded from its
// content, so recall can search memories semantically alongside entities.
// The index may be nil, in which case writes skip embedding maintenance.
type MemoryStore struct {
	store storage.MemoryStore
	index *MemoryIndex
}

// NewMemoryStore creates a memory store over the given backend.
func NewMemoryStore(store storage.MemoryStore, index *MemoryIndex) (*MemoryStore, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: memory backend is required", storage.ErrInvalidInput)
	}
	return &MemoryStore{store: store, index: index}, nil
}

// Put stores a memory and refreshes its embedding. Missing IDs and
// timestamps are filled in; importance is clamped to [0, 1]. An embedding
// failure does not fail the write.
func (m *MemoryStore) Put(ctx context.Context, mem *types.EpisodicMemory) (*types.EpisodicMemory, error) {
	if mem == nil {
		return nil, storage.ErrInvalidInput
	}
	if mem.Content == "" {
		return nil, fmt.Errorf("%w: memory content is required", storage.ErrInvalidInput)
	}
	if mem.ID == "" {
		mem.ID = "mem:" + uuid.NewString()
	}
	if mem.Timestamp.IsZero() {
		mem.Timestamp = time.Now()
	}
	mem.Importance = types.ClampConfidence(mem.Importance)

	if err := m.store.PutMemory(ctx, mem); err != nil {
		return nil, err
	}
	if m.index != nil {
		m.index.IndexMemory(ctx, mem)
	}
	return mem, nil
}

// Get retrieves a memory by ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*types.EpisodicMemory, error) {
	return m.store.GetMemory(ctx, id)
}

// List retrieves memories matching the filter, newest first.
func (m *MemoryStore) List(ctx context.Context, filter storage.MemoryFilter) ([]*types.EpisodicMemory, error) {
	return m.store.ListMemories(ctx, filter)
}

// Delete removes a memory and its embedding.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := m.store.DeleteMemory(ctx, id); err != nil {
		return err
	}
	if m.index != nil {
		m.index.RemoveMemory(ctx, id)
	}
	return nil
}

// Similar returns the memories most similar to the query text, best first.
// Index entries whose memory has since been deleted are skipped.
func (m *MemoryStore) Similar(ctx context.Context, query string, limit int, minScore float64) ([]*types.EpisodicMemory, error) {
	if m.index == nil {
		return nil, fmt.Errorf("similarity search unavailable: no memory index configured")
	}
	matches, err := m.index.SearchSimilar(ctx, query, limit, minScore)
	if err != nil {
		return nil, err
	}

	memories := make([]*types.EpisodicMemory, 0, len(matches))
	for _, match := range matches {
		mem, err := m.store.GetMemory(ctx, match.MemoryID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		memories = append(memories, mem)
	}
	return memories, nil
}
