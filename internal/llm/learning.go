package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// maxRecordedInteractions bounds the in-memory interaction log so a
// long-running pipeline cannot grow without limit.
const maxRecordedInteractions = 256

// NoopLearner is a LearningProvider that does nothing. Used when no learning
// backend is configured; the pipeline degrades to plain retrieval.
type NoopLearner struct{}

// EnhanceQuery returns the query unchanged.
func (NoopLearner) EnhanceQuery(_ context.Context, query string, _ map[string]string) (string, []string, error) {
	return query, nil, nil
}

// RecordInteraction discards the interaction.
func (NoopLearner) RecordInteraction(context.Context, Interaction) error { return nil }

// RecordFeedback discards the feedback.
func (NoopLearner) RecordFeedback(context.Context, InteractionFeedback) error { return nil }

var _ LearningProvider = NoopLearner{}

// GenerativeLearner implements LearningProvider on a TextGenerator. Queries
// are rewritten by the model with the temporal context as guidance; recent
// interactions and feedback are kept in a bounded log and summarised into
// the rewrite prompt so well-rated memories steer future retrievals.
type GenerativeLearner struct {
	generator TextGenerator

	mu           sync.Mutex
	interactions []Interaction
	feedback     []InteractionFeedback
}

// NewGenerativeLearner wraps a text generator as a learning provider.
func NewGenerativeLearner(generator TextGenerator) *GenerativeLearner {
	return &GenerativeLearner{generator: generator}
}

var _ LearningProvider = (*GenerativeLearner)(nil)

// EnhanceQuery asks the model to rewrite the query for retrieval. On failure
// the original query is returned along with the error so callers can fall
// back without losing the request.
func (l *GenerativeLearner) EnhanceQuery(ctx context.Context, query string, temporalContext map[string]string) (string, []string, error) {
	if strings.TrimSpace(query) == "" {
		return query, nil, nil
	}

	prompt := l.buildEnhancePrompt(query, temporalContext)
	rewritten, err := l.generator.Complete(ctx, prompt)
	if err != nil {
		return query, nil, fmt.Errorf("query enhancement failed: %w", err)
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query, nil, nil
	}

	insights := []string{"query rewritten with learned context"}
	if len(temporalContext) > 0 {
		insights = append(insights, "temporal context applied")
	}
	return rewritten, insights, nil
}

func (l *GenerativeLearner) buildEnhancePrompt(query string, temporalContext map[string]string) string {
	var b strings.Builder
	b.WriteString("Rewrite the following memory retrieval query to be more specific. ")
	b.WriteString("Return only the rewritten query, nothing else.\n\n")
	b.WriteString("Query: ")
	b.WriteString(query)
	b.WriteString("\n")

	if len(temporalContext) > 0 {
		b.WriteString("Current context:\n")
		for k, v := range temporalContext {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}

	l.mu.Lock()
	recent := l.feedback
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, fb := range recent {
		if fb.Comment != "" && fb.Relevance >= 0.6 {
			fmt.Fprintf(&b, "Past feedback: %s\n", fb.Comment)
		}
	}
	l.mu.Unlock()

	return b.String()
}

// RecordInteraction appends to the bounded interaction log.
func (l *GenerativeLearner) RecordInteraction(_ context.Context, interaction Interaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.interactions = append(l.interactions, interaction)
	if len(l.interactions) > maxRecordedInteractions {
		l.interactions = l.interactions[len(l.interactions)-maxRecordedInteractions:]
	}
	return nil
}

// RecordFeedback appends to the bounded feedback log.
func (l *GenerativeLearner) RecordFeedback(_ context.Context, feedback InteractionFeedback) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.feedback = append(l.feedback, feedback)
	if len(l.feedback) > maxRecordedInteractions {
		l.feedback = l.feedback[len(l.feedback)-maxRecordedInteractions:]
	}
	return nil
}

// InteractionCount reports how many interactions are currently retained.
func (l *GenerativeLearner) InteractionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.interactions)
}
