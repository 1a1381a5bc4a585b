package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmind/recollect/internal/llm"
	"github.com/voxmind/recollect/internal/storage/sqlite"
	"github.com/voxmind/recollect/pkg/types"
)

// fakeLearner records every call for assertions.
type fakeLearner struct {
	mu           sync.Mutex
	enhanceErr   error
	rewritten    string
	interactions []llm.Interaction
	feedback     []llm.InteractionFeedback
}

func (f *fakeLearner) EnhanceQuery(_ context.Context, query string, _ map[string]string) (string, []string, error) {
	if f.enhanceErr != nil {
		return query, nil, f.enhanceErr
	}
	if f.rewritten != "" {
		return f.rewritten, []string{"rewrite applied"}, nil
	}
	return query, nil, nil
}

func (f *fakeLearner) RecordInteraction(_ context.Context, interaction llm.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interactions = append(f.interactions, interaction)
	return nil
}

func (f *fakeLearner) RecordFeedback(_ context.Context, fb llm.InteractionFeedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, fb)
	return nil
}

func (f *fakeLearner) recorded() ([]llm.Interaction, []llm.InteractionFeedback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Interaction{}, f.interactions...), append([]llm.InteractionFeedback{}, f.feedback...)
}

func newTestPipeline(t *testing.T, learner llm.LearningProvider) (*Pipeline, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pipeline, err := NewPipeline(store, NewWeightedRanker(), learner, ClockContext{})
	require.NoError(t, err)
	return pipeline, store
}

func seedMemories(t *testing.T, store *sqlite.Store, memories []*types.EpisodicMemory) {
	t.Helper()
	for _, m := range memories {
		require.NoError(t, store.PutMemory(context.Background(), m))
	}
}

func TestRetrieveRanksAndLimits(t *testing.T) {
	learner := &fakeLearner{}
	pipeline, store := newTestPipeline(t, learner)
	ctx := context.Background()
	now := time.Now()

	seedMemories(t, store, []*types.EpisodicMemory{
		{ID: "mem:1", Timestamp: now.Add(-10 * time.Minute), Content: "Alice presented the launch plan for Atlas", Importance: 0.9},
		{ID: "mem:2", Timestamp: now.Add(-20 * time.Minute), Content: "grocery list for the weekend", Importance: 0.2},
		{ID: "mem:3", Timestamp: now.Add(-5 * time.Minute), Content: "Atlas launch moved to Thursday", Importance: 0.8},
	})

	result, err := pipeline.Retrieve(ctx, "Atlas launch", RetrieveOptions{Limit: 2})
	require.NoError(t, err)

	assert.NotEmpty(t, result.QueryID)
	assert.Equal(t, "Atlas launch", result.OriginalQuery)
	require.Len(t, result.Memories, 2, "limit caps ranked output")

	// Both Atlas memories should outrank the groceries.
	ids := []string{result.Memories[0].ID, result.Memories[1].ID}
	assert.ElementsMatch(t, []string{"mem:1", "mem:3"}, ids)
	assert.GreaterOrEqual(t, result.Memories[0].RelevanceScore, result.Memories[1].RelevanceScore)
	require.NotNil(t, result.Memories[0].Breakdown)
	assert.NotEmpty(t, result.Memories[0].Reason)

	assert.NotEmpty(t, result.Metadata.TemporalContext["time_of_day"])
	assert.Empty(t, result.Metadata.FeedbackCollected)

	// The enhanced query carries the temporal context as key:value pairs.
	assert.Contains(t, result.EnhancedQuery, "Atlas launch")
	assert.Contains(t, result.EnhancedQuery, "time_of_day:")
}

func TestRetrieveScopesTimeframe(t *testing.T) {
	pipeline, store := newTestPipeline(t, &fakeLearner{})
	ctx := context.Background()
	now := time.Now()

	seedMemories(t, store, []*types.EpisodicMemory{
		{ID: "mem:fresh", Timestamp: now.Add(-5 * time.Minute), Content: "standup notes", Importance: 0.5},
		{ID: "mem:stale", Timestamp: now.Add(-2 * time.Hour), Content: "standup notes from earlier", Importance: 0.5},
	})

	result, err := pipeline.Retrieve(ctx, "standup notes", RetrieveOptions{
		Timeframe: types.TimeframeImmediate,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, result.Memories, 1)
	assert.Equal(t, "mem:fresh", result.Memories[0].ID)

	result, err = pipeline.Retrieve(ctx, "standup notes", RetrieveOptions{
		Timeframe: types.TimeframeAll,
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Len(t, result.Memories, 2)
}

func TestRetrieveSkipEnhancement(t *testing.T) {
	learner := &fakeLearner{rewritten: "should not be used"}
	pipeline, store := newTestPipeline(t, learner)
	ctx := context.Background()

	seedMemories(t, store, []*types.EpisodicMemory{
		{ID: "mem:1", Timestamp: time.Now(), Content: "notes about the demo", Importance: 0.6},
	})

	result, err := pipeline.Retrieve(ctx, "demo notes", RetrieveOptions{
		Limit:           5,
		SkipEnhancement: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "demo notes", result.EnhancedQuery, "raw query passes through untouched")
	assert.Empty(t, result.Metadata.LearningInsights)
}

func TestRetrieveSurvivesLearnerFailure(t *testing.T) {
	learner := &fakeLearner{enhanceErr: errors.New("model offline")}
	pipeline, store := newTestPipeline(t, learner)
	ctx := context.Background()

	seedMemories(t, store, []*types.EpisodicMemory{
		{ID: "mem:1", Timestamp: time.Now(), Content: "notes about the demo", Importance: 0.6},
	})

	result, err := pipeline.Retrieve(ctx, "demo notes", RetrieveOptions{Limit: 5})
	require.NoError(t, err, "enhancement failure must not fail retrieval")
	assert.Len(t, result.Memories, 1)
	assert.Contains(t, result.EnhancedQuery, "demo notes", "falls back to the context-augmented query")
}

func TestRetrieveRecordsInteractionAsync(t *testing.T) {
	learner := &fakeLearner{rewritten: "demo notes from this week"}
	pipeline, store := newTestPipeline(t, learner)
	ctx := context.Background()

	seedMemories(t, store, []*types.EpisodicMemory{
		{ID: "mem:1", Timestamp: time.Now(), Content: "notes about the demo", Importance: 0.6},
	})

	result, err := pipeline.Retrieve(ctx, "demo notes", RetrieveOptions{Limit: 5})
	require.NoError(t, err)
	pipeline.Wait()

	interactions, _ := learner.recorded()
	require.Len(t, interactions, 1)
	assert.Equal(t, result.QueryID, interactions[0].QueryID)
	assert.Equal(t, "demo notes", interactions[0].OriginalQuery)
	assert.Equal(t, []string{"mem:1"}, interactions[0].MemoryIDs)
}

func TestRecordFeedbackRoundTrip(t *testing.T) {
	learner := &fakeLearner{}
	pipeline, store := newTestPipeline(t, learner)
	ctx := context.Background()

	seedMemories(t, store, []*types.EpisodicMemory{
		{ID: "mem:1", Timestamp: time.Now(), Content: "notes about the demo", Importance: 0.6},
	})

	result, err := pipeline.Retrieve(ctx, "demo notes", RetrieveOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, result.Memories, 1)

	updated, err := pipeline.RecordFeedback(ctx, types.RetrievalFeedback{
		QueryID:         result.QueryID,
		MemoryID:        "mem:1",
		RelevanceRating: 5,
		AccuracyRating:  3,
		UserComment:     "exactly right",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mem:1"}, updated.Metadata.FeedbackCollected)

	// The stored result reflects the feedback on later lookups too.
	stored, err := pipeline.Result(result.QueryID)
	require.NoError(t, err)
	assert.Equal(t, []string{"mem:1"}, stored.Metadata.FeedbackCollected)

	_, feedback := learner.recorded()
	require.Len(t, feedback, 1)
	assert.Equal(t, 1.0, feedback[0].Relevance, "5/5 normalises to 1")
	assert.Equal(t, 0.5, feedback[0].Accuracy, "3/5 normalises to 0.5")
	assert.Equal(t, "exactly right", feedback[0].Comment)
}

func TestRecordFeedbackValidation(t *testing.T) {
	pipeline, store := newTestPipeline(t, &fakeLearner{})
	ctx := context.Background()

	seedMemories(t, store, []*types.EpisodicMemory{
		{ID: "mem:1", Timestamp: time.Now(), Content: "notes", Importance: 0.5},
	})
	result, err := pipeline.Retrieve(ctx, "notes", RetrieveOptions{Limit: 5})
	require.NoError(t, err)

	_, err = pipeline.RecordFeedback(ctx, types.RetrievalFeedback{
		QueryID:  "no-such-query",
		MemoryID: "mem:1",
	})
	assert.ErrorIs(t, err, ErrUnknownQuery)

	_, err = pipeline.RecordFeedback(ctx, types.RetrievalFeedback{
		QueryID:  result.QueryID,
		MemoryID: "mem:other",
	})
	assert.ErrorIs(t, err, ErrMemoryNotInResult)
}

func TestFeedbackBoostsFutureRankings(t *testing.T) {
	ranker := NewWeightedRanker()
	ctx := context.Background()
	now := time.Now()

	a := &types.EpisodicMemory{ID: "mem:a", Timestamp: now, Content: "meeting notes", Importance: 0.5}
	b := &types.EpisodicMemory{ID: "mem:b", Timestamp: now, Content: "meeting notes", Importance: 0.5}

	ranked, err := ranker.Rank(ctx, "meeting notes", []*types.EpisodicMemory{a, b}, RankOptions{Now: now})
	require.NoError(t, err)
	assert.Equal(t, ranked[0].RelevanceScore, ranked[1].RelevanceScore, "identical memories tie before feedback")

	ranker.RecordFeedback("mem:b", 1.0)

	ranked, err = ranker.Rank(ctx, "meeting notes", []*types.EpisodicMemory{a, b}, RankOptions{Now: now})
	require.NoError(t, err)
	assert.Equal(t, "mem:b", ranked[0].ID, "positive feedback lifts the memory")
	assert.Greater(t, ranked[0].RelevanceScore, ranked[1].RelevanceScore)
}
