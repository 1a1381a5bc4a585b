package types

import "time"

// Timeframe scopes a memory retrieval to a lookback window.
type Timeframe string

// Timeframe constants and their lookback windows.
const (
	TimeframeImmediate Timeframe = "immediate" // last 15 minutes
	TimeframeRecent    Timeframe = "recent"    // last 6 hours
	TimeframeMedium    Timeframe = "medium"    // last 7 days
	TimeframeLongTerm  Timeframe = "longTerm"  // last 90 days
	TimeframeAll       Timeframe = "all"       // unbounded
)

// Window returns the lookback duration for the timeframe. A zero duration
// means the lookback is unbounded; unknown timeframes are treated as "all".
func (t Timeframe) Window() time.Duration {
	switch t {
	case TimeframeImmediate:
		return 15 * time.Minute
	case TimeframeRecent:
		return 6 * time.Hour
	case TimeframeMedium:
		return 7 * 24 * time.Hour
	case TimeframeLongTerm:
		return 90 * 24 * time.Hour
	}
	return 0
}

// EpisodicMemory is a timestamped, content-bearing record of something the
// assistant observed or was told. This is the episodic store's row shape.
type EpisodicMemory struct {
	ID         string                 `json:"id"` // Unique identifier (format: mem:uuid)
	Timestamp  time.Time              `json:"timestamp"`
	Content    string                 `json:"content"`
	Importance float64                `json:"importance"` // 0.0-1.0
	Context    string                 `json:"context,omitempty"`
	Source     string                 `json:"source,omitempty"`
	Tags       []string               `json:"tags,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ScoreBreakdown decomposes a relevance score into its weighted factors so
// callers can explain why a memory was surfaced.
type ScoreBreakdown struct {
	TextMatch  float64 `json:"text_match"`
	Recency    float64 `json:"recency"`
	Importance float64 `json:"importance"`
	Feedback   float64 `json:"feedback"`
}

// RankedMemory is an episodic memory scored against a query.
type RankedMemory struct {
	EpisodicMemory

	RelevanceScore float64         `json:"relevance_score"`
	Breakdown      *ScoreBreakdown `json:"breakdown,omitempty"`
	Reason         string          `json:"reason,omitempty"`
}

// RetrievalMetadata carries the bookkeeping attached to a retrieval result.
type RetrievalMetadata struct {
	// FeedbackCollected grows as feedback arrives for memories in this
	// result. Appearing once is sufficient; the list is not deduplicated
	// on repeat feedback.
	FeedbackCollected []string `json:"feedback_collected"`

	// LearningInsights describes, in human-readable form, which context
	// categories were injected during query enhancement.
	LearningInsights []string `json:"learning_insights,omitempty"`

	// TemporalContext is the context snapshot used for enhancement.
	TemporalContext map[string]string `json:"temporal_context,omitempty"`
}

// RetrievalResult is the outcome of one memory retrieval. Results live in a
// bounded per-pipeline history keyed by QueryID so feedback can be attached
// after the fact; feedback mutates the stored result in place.
type RetrievalResult struct {
	QueryID       string            `json:"query_id"`
	OriginalQuery string            `json:"original_query"`
	EnhancedQuery string            `json:"enhanced_query,omitempty"`
	Memories      []RankedMemory    `json:"memories"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      RetrievalMetadata `json:"metadata"`
}

// RetrievalFeedback is a caller's judgement of one retrieved memory.
// Ratings use a 1-5 scale and are normalized to 0-1 before being forwarded
// to the learning collaborator.
type RetrievalFeedback struct {
	QueryID         string  `json:"query_id"`
	MemoryID        string  `json:"memory_id"`
	RelevanceRating float64 `json:"relevance_rating"` // 1-5
	AccuracyRating  float64 `json:"accuracy_rating"`  // 1-5
	UserComment     string  `json:"user_comment,omitempty"`
}
