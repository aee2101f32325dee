package models

import "time"

// Recommendation is the discrete decision attached to a verification result.
type Recommendation string

const (
	RecommendApprove     Recommendation = "APPROVE"
	RecommendReject      Recommendation = "REJECT"
	RecommendNeedsReview Recommendation = "NEEDS_REVIEW"
)

// RunState tracks a verification run through the pipeline.
type RunState string

const (
	StateReceived   RunState = "RECEIVED"
	StateNormalized RunState = "NORMALIZED"
	StateAnalyzed   RunState = "ANALYZED"
	StateScored     RunState = "SCORED"
	StatePersisted  RunState = "PERSISTED"
	StateErrored    RunState = "ERRORED"
)

// SignalUsage records one upstream signal as consumed by the scoring engine:
// its raw value and the weight actually applied after renormalization.
// Kept on the result for explainability and audit.
type SignalUsage struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Weight    float64 `json:"weight"`
	Available bool    `json:"available"`
}

// ChunkSimilarityStats summarizes the index-aligned chunk similarity sequence.
type ChunkSimilarityStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Worst  float64 `json:"worst"`
}

// VerificationResult aggregates every signal for one (complaint, proof) pair
// plus the fused composite score and recommendation. Immutable after creation.
type VerificationResult struct {
	ID          string `json:"id"`
	ComplaintID string `json:"complaint_id"`
	ProofID     string `json:"proof_id"`

	HashSimilarity    float64              `json:"perceptual_hash_similarity"`
	ChunkSimilarities []float64            `json:"chunk_similarities"`
	ChunkStats        ChunkSimilarityStats `json:"chunk_stats"`

	BeforeVerdict *ManipulationVerdict `json:"before_manipulation"`
	AfterVerdict  *ManipulationVerdict `json:"after_manipulation"`
	Judgment      *SemanticJudgment    `json:"semantic_judgment"`

	// DistanceM is the great-circle distance between the complaint and proof
	// capture coordinates.
	DistanceM    float64 `json:"distance_m"`
	WithinRadius bool    `json:"within_radius"`

	CompositeScore float64        `json:"composite_score"`
	Recommendation Recommendation `json:"recommendation"`
	Signals        []SignalUsage  `json:"signals"`
	Explanation    string         `json:"explanation"`

	// Warnings surfaces partial failures (signal unavailability, durability
	// problems) so a reviewer sees exactly which signals were trustworthy.
	Warnings []string `json:"warnings,omitempty"`

	State            RunState  `json:"state"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`

	// Human review finalization (empty until a reviewer decides).
	ReviewDecision string     `json:"review_decision,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
}
