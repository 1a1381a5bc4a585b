package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/voxmind/recollect/pkg/types"
)

// RankOptions controls one ranking pass.
type RankOptions struct {
	// MinRelevanceScore drops memories scoring below the threshold.
	MinRelevanceScore float64

	// MaxResults caps the ranked output.
	MaxResults int

	// IncludeReasons attaches a human-readable reason and score breakdown
	// to each result.
	IncludeReasons bool

	// Now anchors recency scoring; zero means time.Now().
	Now time.Time
}

// Ranker orders candidate memories by relevance to a query. Feedback flows
// back in so well-rated memories climb in future rankings.
type Ranker interface {
	Rank(ctx context.Context, query string, memories []*types.EpisodicMemory, opts RankOptions) ([]types.RankedMemory, error)

	// RecordFeedback adjusts the ranker's view of a memory with a
	// normalised relevance rating in [0, 1].
	RecordFeedback(memoryID string, relevance float64)
}

// Relevance factor weights. Text match dominates, importance next, recency
// breaks ties between similar matches, and accumulated feedback nudges.
const (
	weightTextMatch  = 0.4
	weightImportance = 0.3
	weightRecency    = 0.2
	weightFeedback   = 0.1
)

// recencyHalfLife is the age at which the recency factor halves.
const recencyHalfLife = 24 * time.Hour

// WeightedRanker scores memories as a weighted sum of term overlap,
// importance, recency decay and accumulated feedback.
type WeightedRanker struct {
	mu       sync.RWMutex
	feedback map[string]float64 // memory ID -> running average rating
	counts   map[string]int
}

// NewWeightedRanker creates a ranker with no accumulated feedback.
func NewWeightedRanker() *WeightedRanker {
	return &WeightedRanker{
		feedback: make(map[string]float64),
		counts:   make(map[string]int),
	}
}

var _ Ranker = (*WeightedRanker)(nil)

// Rank scores and orders the candidates, best first.
func (r *WeightedRanker) Rank(_ context.Context, query string, memories []*types.EpisodicMemory, opts RankOptions) ([]types.RankedMemory, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	terms := queryTerms(query)

	ranked := make([]types.RankedMemory, 0, len(memories))
	for _, mem := range memories {
		breakdown := types.ScoreBreakdown{
			TextMatch:  textMatchScore(terms, mem),
			Recency:    recencyScore(now, mem.Timestamp),
			Importance: types.ClampConfidence(mem.Importance),
			Feedback:   r.feedbackScore(mem.ID),
		}
		score := weightTextMatch*breakdown.TextMatch +
			weightRecency*breakdown.Recency +
			weightImportance*breakdown.Importance +
			weightFeedback*breakdown.Feedback

		if score < opts.MinRelevanceScore {
			continue
		}

		rm := types.RankedMemory{
			EpisodicMemory: *mem,
			RelevanceScore: score,
		}
		if opts.IncludeReasons {
			b := breakdown
			rm.Breakdown = &b
			rm.Reason = buildReason(breakdown)
		}
		ranked = append(ranked, rm)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})
	if opts.MaxResults > 0 && len(ranked) > opts.MaxResults {
		ranked = ranked[:opts.MaxResults]
	}
	return ranked, nil
}

// RecordFeedback folds a rating into the memory's running average.
func (r *WeightedRanker) RecordFeedback(memoryID string, relevance float64) {
	if memoryID == "" {
		return
	}
	relevance = types.ClampConfidence(relevance)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.counts[memoryID]
	r.feedback[memoryID] = (r.feedback[memoryID]*float64(n) + relevance) / float64(n+1)
	r.counts[memoryID] = n + 1
}

func (r *WeightedRanker) feedbackScore(memoryID string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feedback[memoryID]
}

// queryTerms lowercases and splits the query, dropping single-letter noise.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}

// textMatchScore is the fraction of query terms present in the memory's
// content, context or tags.
func textMatchScore(terms []string, mem *types.EpisodicMemory) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(mem.Content + " " + mem.Context + " " + strings.Join(mem.Tags, " "))

	hits := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// recencyScore decays exponentially with age, halving every recencyHalfLife.
func recencyScore(now, timestamp time.Time) float64 {
	age := now.Sub(timestamp)
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(recencyHalfLife))
}

func buildReason(b types.ScoreBreakdown) string {
	var parts []string
	if b.TextMatch >= 0.5 {
		parts = append(parts, "strong text match")
	} else if b.TextMatch > 0 {
		parts = append(parts, "partial text match")
	}
	if b.Recency >= 0.5 {
		parts = append(parts, "recent")
	}
	if b.Importance >= 0.7 {
		parts = append(parts, "high importance")
	}
	if b.Feedback >= 0.6 {
		parts = append(parts, "positive feedback history")
	}
	if len(parts) == 0 {
		return "weak overall match"
	}
	return fmt.Sprintf("ranked by: %s", strings.Join(parts, ", "))
}
