// Package retrieval implements the memory retrieval pipeline: temporal
// context capture, query enhancement, timeframe-scoped candidate fetch,
// relevance ranking, and the feedback loop into the learning collaborator.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/voxmind/recollect/internal/llm"
	"github.com/voxmind/recollect/internal/storage"
	"github.com/voxmind/recollect/pkg/types"
)

var (
	// ErrUnknownQuery indicates feedback referenced a query ID that is not
	// in the retrieval history (never issued, or evicted).
	ErrUnknownQuery = errors.New("unknown query id")

	// ErrMemoryNotInResult indicates feedback referenced a memory that was
	// not part of the identified retrieval result.
	ErrMemoryNotInResult = errors.New("memory not part of retrieval result")
)

// collaboratorTimeout bounds every call into the learning collaborator so a
// hung model cannot stall retrieval.
const collaboratorTimeout = 5 * time.Second

// defaultHistorySize bounds the retrieval history. Old results are evicted
// least-recently-used; feedback for evicted queries returns ErrUnknownQuery.
const defaultHistorySize = 128

// overFetchFactor widens the candidate fetch so ranking has room to drop
// weak matches and still fill the caller's limit.
const overFetchFactor = 2

// RetrieveOptions controls one retrieval.
type RetrieveOptions struct {
	// Timeframe scopes candidates to a lookback window (default: all).
	Timeframe types.Timeframe

	// Limit caps the ranked output (default: 10).
	Limit int

	// Tags restricts candidates to memories carrying any of the tags.
	Tags []string

	// Sources restricts candidates to memories from any of the sources.
	Sources []string

	// MinRelevance drops results scoring below the threshold.
	MinRelevance float64

	// SkipEnhancement retrieves with the raw query, bypassing temporal
	// augmentation and the learning collaborator's rewrite.
	SkipEnhancement bool
}

// Pipeline is the memory retrieval pipeline. Results are kept in a bounded
// history keyed by query ID so feedback can be attached after the fact.
type Pipeline struct {
	memories storage.MemoryStore
	ranker   Ranker
	learner  llm.LearningProvider
	temporal ContextProvider

	history *lru.Cache[string, *types.RetrievalResult]

	// feedbackMu serialises in-place mutation of stored results.
	feedbackMu sync.Mutex

	// learning holds goroutines spawned for fire-and-forget recording, so
	// tests and shutdown can wait for them.
	learning sync.WaitGroup
}

// NewPipeline assembles a retrieval pipeline. learner and temporal may be
// nil; they default to a no-op learner and the clock-based provider.
func NewPipeline(memories storage.MemoryStore, ranker Ranker, learner llm.LearningProvider, temporal ContextProvider) (*Pipeline, error) {
	if memories == nil || ranker == nil {
		return nil, fmt.Errorf("%w: memory store and ranker are required", storage.ErrInvalidInput)
	}
	if learner == nil {
		learner = llm.NoopLearner{}
	}
	if temporal == nil {
		temporal = ClockContext{}
	}

	history, err := lru.New[string, *types.RetrievalResult](defaultHistorySize)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		memories: memories,
		ranker:   ranker,
		learner:  learner,
		temporal: temporal,
		history:  history,
	}, nil
}

// Retrieve runs one retrieval: capture temporal context, enhance the query,
// fetch candidates for the timeframe, rank them, and record the interaction
// with the learning collaborator without blocking the caller.
func (p *Pipeline) Retrieve(ctx context.Context, query string, opts RetrieveOptions) (*types.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", storage.ErrInvalidInput)
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}
	if opts.Timeframe == "" {
		opts.Timeframe = types.TimeframeAll
	}

	now := time.Now()
	queryID := uuid.NewString()
	temporalContext := p.temporal.Current(now)

	enhanced, insights := query, []string(nil)
	if !opts.SkipEnhancement {
		enhanced, insights = p.enhanceQuery(ctx, query, temporalContext)
	}

	filter := storage.MemoryFilter{
		Tags:    opts.Tags,
		Sources: opts.Sources,
		Limit:   opts.Limit * overFetchFactor,
	}
	if window := opts.Timeframe.Window(); window > 0 {
		filter.Since = now.Add(-window)
	}

	candidates, err := p.memories.ListMemories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	ranked, err := p.ranker.Rank(ctx, enhanced, candidates, RankOptions{
		MinRelevanceScore: opts.MinRelevance,
		MaxResults:        opts.Limit,
		IncludeReasons:    true,
		Now:               now,
	})
	if err != nil {
		return nil, fmt.Errorf("ranking failed: %w", err)
	}

	result := &types.RetrievalResult{
		QueryID:       queryID,
		OriginalQuery: query,
		EnhancedQuery: enhanced,
		Memories:      ranked,
		Timestamp:     now,
		Metadata: types.RetrievalMetadata{
			FeedbackCollected: []string{},
			LearningInsights:  insights,
			TemporalContext:   temporalContext,
		},
	}
	p.history.Add(queryID, result)

	// Fire and forget: the interaction record must not delay the caller
	// and must survive the request context being cancelled.
	p.learning.Add(1)
	go func() {
		defer p.learning.Done()
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), collaboratorTimeout)
		defer cancel()

		memoryIDs := make([]string, len(ranked))
		for i, m := range ranked {
			memoryIDs[i] = m.ID
		}
		err := p.learner.RecordInteraction(detached, llm.Interaction{
			QueryID:       queryID,
			OriginalQuery: query,
			EnhancedQuery: enhanced,
			MemoryIDs:     memoryIDs,
			Timestamp:     now.Unix(),
		})
		if err != nil {
			log.Printf("retrieval: failed to record interaction %s: %v", queryID, err)
		}
	}()

	return result, nil
}

// enhanceQuery appends the temporal context as key:value pairs and lets the
// learning collaborator rewrite the result. Collaborator failure falls back
// to the context-augmented query.
func (p *Pipeline) enhanceQuery(ctx context.Context, query string, temporalContext map[string]string) (string, []string) {
	keys := make([]string, 0, len(temporalContext))
	for k := range temporalContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(query)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString(":")
		b.WriteString(temporalContext[k])
	}
	augmented := b.String()

	callCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	enhanced, insights, err := p.learner.EnhanceQuery(callCtx, augmented, temporalContext)
	if err != nil {
		log.Printf("retrieval: query enhancement failed, using context-augmented query: %v", err)
		return augmented, []string{"temporal context appended"}
	}
	if enhanced == "" {
		enhanced = augmented
	}
	insights = append([]string{"temporal context appended"}, insights...)
	return enhanced, insights
}

// RecordFeedback attaches a caller's rating of one retrieved memory to the
// stored result, folds it into the ranker, and forwards the normalised
// signal to the learning collaborator.
func (p *Pipeline) RecordFeedback(ctx context.Context, feedback types.RetrievalFeedback) (*types.RetrievalResult, error) {
	if feedback.QueryID == "" || feedback.MemoryID == "" {
		return nil, fmt.Errorf("%w: query ID and memory ID are required", storage.ErrInvalidInput)
	}

	result, ok := p.history.Get(feedback.QueryID)
	if !ok {
		return nil, ErrUnknownQuery
	}

	found := false
	for _, m := range result.Memories {
		if m.ID == feedback.MemoryID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMemoryNotInResult, feedback.MemoryID)
	}

	relevance := normalizeRating(feedback.RelevanceRating)
	accuracy := normalizeRating(feedback.AccuracyRating)

	p.ranker.RecordFeedback(feedback.MemoryID, relevance)

	p.feedbackMu.Lock()
	result.Metadata.FeedbackCollected = append(result.Metadata.FeedbackCollected, feedback.MemoryID)
	p.feedbackMu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()
	err := p.learner.RecordFeedback(callCtx, llm.InteractionFeedback{
		QueryID:   feedback.QueryID,
		MemoryID:  feedback.MemoryID,
		Relevance: relevance,
		Accuracy:  accuracy,
		Comment:   feedback.UserComment,
	})
	if err != nil {
		// Feedback already took effect locally; the collaborator can
		// catch up from later signals.
		log.Printf("retrieval: failed to forward feedback for %s: %v", feedback.QueryID, err)
	}

	return result, nil
}

// Result returns a retrieval result from the history, or ErrUnknownQuery.
func (p *Pipeline) Result(queryID string) (*types.RetrievalResult, error) {
	result, ok := p.history.Get(queryID)
	if !ok {
		return nil, ErrUnknownQuery
	}
	return result, nil
}

// Wait blocks until all in-flight learning goroutines finish. Intended for
// shutdown and tests.
func (p *Pipeline) Wait() {
	p.learning.Wait()
}

// normalizeRating maps a 1-5 rating into [0, 1]. Out-of-range input clamps.
func normalizeRating(rating float64) float64 {
	return types.ClampConfidence((rating - 1) / 4)
}
