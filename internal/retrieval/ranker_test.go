package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmind/recollect/pkg/types"
)

func TestTextMatchScore(t *testing.T) {
	mem := &types.EpisodicMemory{
		Content: "Alice presented the Atlas launch plan",
		Tags:    []string{"work"},
	}

	assert.Equal(t, 1.0, textMatchScore(queryTerms("atlas launch"), mem))
	assert.Equal(t, 0.5, textMatchScore(queryTerms("atlas groceries"), mem))
	assert.Equal(t, 0.0, textMatchScore(queryTerms("holiday plans"), mem))
	assert.Equal(t, 1.0, textMatchScore(queryTerms("work"), mem), "tags count as matchable text")
	assert.Equal(t, 0.0, textMatchScore(nil, mem))
}

func TestRecencyScoreDecays(t *testing.T) {
	now := time.Now()

	assert.Equal(t, 1.0, recencyScore(now, now))
	assert.InDelta(t, 0.5, recencyScore(now, now.Add(-recencyHalfLife)), 1e-9)
	assert.InDelta(t, 0.25, recencyScore(now, now.Add(-2*recencyHalfLife)), 1e-9)
	assert.Equal(t, 1.0, recencyScore(now, now.Add(time.Minute)), "future timestamps score full")
}

func TestRankMinScoreFilters(t *testing.T) {
	ranker := NewWeightedRanker()
	now := time.Now()

	memories := []*types.EpisodicMemory{
		{ID: "hit", Timestamp: now, Content: "quarterly planning session", Importance: 0.9},
		{ID: "miss", Timestamp: now.Add(-30 * 24 * time.Hour), Content: "unrelated trivia", Importance: 0.1},
	}

	ranked, err := ranker.Rank(context.Background(), "quarterly planning", memories, RankOptions{
		MinRelevanceScore: 0.5,
		Now:               now,
	})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "hit", ranked[0].ID)
}

func TestRankBreakdownOnlyWhenRequested(t *testing.T) {
	ranker := NewWeightedRanker()
	now := time.Now()
	memories := []*types.EpisodicMemory{
		{ID: "m", Timestamp: now, Content: "notes", Importance: 0.5},
	}

	ranked, err := ranker.Rank(context.Background(), "notes", memories, RankOptions{Now: now})
	require.NoError(t, err)
	assert.Nil(t, ranked[0].Breakdown)
	assert.Empty(t, ranked[0].Reason)

	ranked, err = ranker.Rank(context.Background(), "notes", memories, RankOptions{Now: now, IncludeReasons: true})
	require.NoError(t, err)
	require.NotNil(t, ranked[0].Breakdown)
	assert.Equal(t, 1.0, ranked[0].Breakdown.TextMatch)
	assert.NotEmpty(t, ranked[0].Reason)
}

func TestFeedbackRunningAverage(t *testing.T) {
	ranker := NewWeightedRanker()

	ranker.RecordFeedback("mem:1", 1.0)
	ranker.RecordFeedback("mem:1", 0.0)
	assert.InDelta(t, 0.5, ranker.feedbackScore("mem:1"), 1e-9)

	ranker.RecordFeedback("mem:1", 0.5)
	assert.InDelta(t, 0.5, ranker.feedbackScore("mem:1"), 1e-9)

	assert.Equal(t, 0.0, ranker.feedbackScore("mem:unrated"))
}

func TestClockContext(t *testing.T) {
	provider := ClockContext{}

	// Saturday 2026-08-29 09:30 local.
	morning := time.Date(2026, time.August, 29, 9, 30, 0, 0, time.Local)
	ctx := provider.Current(morning)
	assert.Equal(t, "morning", ctx["time_of_day"])
	assert.Equal(t, "saturday", ctx["day_of_week"])
	assert.Equal(t, "true", ctx["is_weekend"])
	assert.Equal(t, "summer", ctx["season"])

	// Wednesday 2026-01-14 23:10 local.
	lateNight := time.Date(2026, time.January, 14, 23, 10, 0, 0, time.Local)
	ctx = provider.Current(lateNight)
	assert.Equal(t, "night", ctx["time_of_day"])
	assert.Equal(t, "wednesday", ctx["day_of_week"])
	assert.Equal(t, "false", ctx["is_weekend"])
	assert.Equal(t, "winter", ctx["season"])
}
