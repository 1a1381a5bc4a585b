package types

import "time"

// EntityEmbedding is the vector representation of an entity held in the
// vector index. There is exactly one embedding per live entity; it becomes
// stale after any change affecting the canonical text and must then be
// regenerated.
type EntityEmbedding struct {
	ID         string            `json:"id"`          // Owning entity ID
	Vector     []float32         `json:"vector"`      // Fixed-length embedding
	Text       string            `json:"text"`        // The embedded text: "{name} ({type})"
	EntityType string            `json:"entity_type"` // Type tag, mirrored for filtered search
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// EntityMatch is one result of a similarity search against the entity
// namespace of the vector index.
type EntityMatch struct {
	EntityID   string  `json:"entity_id"`
	Score      float64 `json:"score"` // Cosine similarity in [0, 1]
	EntityType string  `json:"entity_type"`
	EntityName string  `json:"entity_name"`
}
