// Package llm defines the model-backed collaborator interfaces for the
// retrieval pipeline and knowledge graph, plus an Ollama-backed
// implementation for local inference.
//
// All collaborators are treated as unreliable: callers bound them with
// timeouts, wrap them in a circuit breaker, and degrade gracefully when they
// fail.
package llm

import "context"

// TextGenerator produces completions from prompts.
type TextGenerator interface {
	// Complete sends a prompt and returns the generated text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// EmbeddingGenerator converts texts into fixed-length vectors. Embed is
// batched: one call embeds many texts, and the result slice is positionally
// aligned with the input.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Interaction is one completed retrieval handed to the learning system.
type Interaction struct {
	QueryID       string
	OriginalQuery string
	EnhancedQuery string
	MemoryIDs     []string
	Timestamp     int64
}

// InteractionFeedback is a normalised feedback signal for one memory in an
// interaction. Ratings are in [0, 1].
type InteractionFeedback struct {
	QueryID   string
	MemoryID  string
	Relevance float64
	Accuracy  float64
	Comment   string
}

// LearningProvider is the optional learning collaborator. It may rewrite
// queries with learned context and consumes interaction and feedback signals
// to improve over time. Implementations must tolerate being called on
// detached contexts after the originating request has finished.
type LearningProvider interface {
	// EnhanceQuery rewrites a query using learned context. Returning the
	// input unchanged is a valid no-op.
	EnhanceQuery(ctx context.Context, query string, temporalContext map[string]string) (string, []string, error)

	// RecordInteraction ingests a completed retrieval.
	RecordInteraction(ctx context.Context, interaction Interaction) error

	// RecordFeedback ingests a normalised feedback signal.
	RecordFeedback(ctx context.Context, feedback InteractionFeedback) error
}
