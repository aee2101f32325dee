package scoring

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/config"
	"github.com/hyperjump/kakunin/internal/models"
	"github.com/hyperjump/kakunin/pkg/utils"
)

// Signal names as they appear in the per-signal audit breakdown.
const (
	SignalPerceptual = "perceptual_hash"
	SignalChunk      = "chunk_similarity"
	SignalSemantic   = "semantic_judgment"
)

// Inputs carries every upstream signal for one (complaint, proof) pair.
// Nil verdicts and a nil judgment mean the corresponding analysis never ran.
type Inputs struct {
	HashSimilarity    float64
	ChunkSimilarities []float64
	BeforeVerdict     *models.ManipulationVerdict
	AfterVerdict      *models.ManipulationVerdict
	Judgment          *models.SemanticJudgment
	Recycled          bool
	// DistanceM is the great-circle distance in meters between the complaint
	// and proof capture coordinates.
	DistanceM float64
}

// Outcome is the fused decision for one pair: the composite score, the
// discrete recommendation, and the audit trail explaining both.
type Outcome struct {
	CompositeScore float64
	Recommendation models.Recommendation
	ChunkStats     models.ChunkSimilarityStats
	Signals        []models.SignalUsage
	Explanation    string
}

// Engine fuses upstream signals into a composite score and recommendation.
// It is the only place decision thresholds live; everything upstream reports
// raw evidence.
type Engine struct {
	cfg    *config.ScoringConfig
	logger *zap.Logger
}

func NewEngine(cfg *config.ScoringConfig, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger}
}

// Fuse computes the composite score and recommendation for in. Deterministic:
// the same inputs always produce the same outcome.
func (e *Engine) Fuse(in Inputs) Outcome {
	stats := chunkStats(in.ChunkSimilarities)

	semValue, semAvailable := e.semanticContribution(in.Judgment)

	signals := []models.SignalUsage{
		{Name: SignalPerceptual, Value: utils.Clamp01(in.HashSimilarity), Weight: e.cfg.PerceptualWeight, Available: true},
		{Name: SignalChunk, Value: stats.Median, Weight: e.cfg.ChunkWeight, Available: len(in.ChunkSimilarities) > 0},
		{Name: SignalSemantic, Value: semValue, Weight: e.cfg.SemanticWeight, Available: semAvailable},
	}
	renormalize(signals)

	score := 0.0
	for _, s := range signals {
		if s.Available {
			score += s.Weight * s.Value
		}
	}

	penalty := e.manipulationPenalty(in.BeforeVerdict, in.AfterVerdict)
	score = utils.Clamp01(score - penalty)

	ceiling := false
	if in.AfterVerdict != nil && in.AfterVerdict.Manipulated && score > e.cfg.ManipulationCeiling {
		score = e.cfg.ManipulationCeiling
		ceiling = true
	}

	rec, reasons := e.recommend(score, in, semAvailable)

	return Outcome{
		CompositeScore: score,
		Recommendation: rec,
		ChunkStats:     stats,
		Signals:        signals,
		Explanation:    e.explain(score, rec, signals, penalty, ceiling, reasons),
	}
}

// semanticContribution maps a judgment to a numeric value in [0,1]. The second
// return is false when the signal must be excluded from the weighted sum.
func (e *Engine) semanticContribution(j *models.SemanticJudgment) (float64, bool) {
	if j == nil || j.Outcome == models.JudgmentFailed {
		return 0, false
	}
	switch j.Outcome {
	case models.JudgmentResolved:
		return utils.Clamp01(j.Confidence), true
	case models.JudgmentNotResolved:
		return utils.Clamp01(1 - j.Confidence), true
	default:
		// Ambiguous contributes the midpoint, pulled toward it harder the
		// less confident the model was.
		return 0.5 * utils.Clamp01(j.Confidence), true
	}
}

// manipulationPenalty is the additive part of the tamper evidence: the worst
// likelihood across both images scaled by the penalty weight. The hard ceiling
// for a flagged after-image is applied separately.
func (e *Engine) manipulationPenalty(before, after *models.ManipulationVerdict) float64 {
	worst := 0.0
	if before != nil && before.Likelihood > worst {
		worst = before.Likelihood
	}
	if after != nil && after.Likelihood > worst {
		worst = after.Likelihood
	}
	return worst * e.cfg.ManipulationPenalty
}

// recommend maps the score to a discrete recommendation, then applies the
// uncertainty floors: unavailable or untrustworthy signals must never
// auto-approve, and a recycled or out-of-radius proof is rejected outright.
func (e *Engine) recommend(score float64, in Inputs, semAvailable bool) (models.Recommendation, []string) {
	var rec models.Recommendation
	switch {
	case score >= e.cfg.ApproveThreshold:
		rec = models.RecommendApprove
	case score <= e.cfg.RejectThreshold:
		rec = models.RecommendReject
	default:
		rec = models.RecommendNeedsReview
	}

	var reasons []string
	if !semAvailable && rec == models.RecommendApprove {
		rec = models.RecommendNeedsReview
		reasons = append(reasons, "semantic signal unavailable")
	}
	if unknownVerdict(in.BeforeVerdict) || unknownVerdict(in.AfterVerdict) {
		if rec == models.RecommendApprove {
			rec = models.RecommendNeedsReview
		}
		reasons = append(reasons, "manipulation status unknown")
	}
	if in.Recycled {
		rec = models.RecommendReject
		reasons = append(reasons, "proof image recycled from another complaint")
	}
	if in.DistanceM > e.cfg.SpatialRadiusM {
		rec = models.RecommendReject
		reasons = append(reasons, fmt.Sprintf("proof captured %.0fm from complaint site (limit %.0fm)", in.DistanceM, e.cfg.SpatialRadiusM))
	}
	return rec, reasons
}

func unknownVerdict(v *models.ManipulationVerdict) bool {
	return v == nil || v.Status == models.ManipulationUnknown
}

func (e *Engine) explain(score float64, rec models.Recommendation, signals []models.SignalUsage, penalty float64, ceiling bool, reasons []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "composite %.3f => %s;", score, rec)
	for _, s := range signals {
		if s.Available {
			fmt.Fprintf(&b, " %s=%.3f (w=%.2f);", s.Name, s.Value, s.Weight)
		} else {
			fmt.Fprintf(&b, " %s unavailable;", s.Name)
		}
	}
	if penalty > 0 {
		fmt.Fprintf(&b, " manipulation penalty %.3f;", penalty)
	}
	if ceiling {
		fmt.Fprintf(&b, " capped at %.2f (after-image flagged manipulated);", e.cfg.ManipulationCeiling)
	}
	for _, r := range reasons {
		fmt.Fprintf(&b, " %s;", r)
	}
	return strings.TrimSuffix(strings.TrimSpace(b.String()), ";")
}

// renormalize rescales the weights of available signals to sum to 1. If no
// signal is available every weight stays zeroed and the score falls out as 0.
func renormalize(signals []models.SignalUsage) {
	total := 0.0
	for _, s := range signals {
		if s.Available {
			total += s.Weight
		}
	}
	for i := range signals {
		if !signals[i].Available {
			signals[i].Weight = 0
			continue
		}
		if total > 0 {
			signals[i].Weight /= total
		}
	}
}

func chunkStats(sims []float64) models.ChunkSimilarityStats {
	if len(sims) == 0 {
		return models.ChunkSimilarityStats{}
	}
	sum := 0.0
	worst := sims[0]
	for _, s := range sims {
		sum += s
		if s < worst {
			worst = s
		}
	}
	return models.ChunkSimilarityStats{
		Mean:   sum / float64(len(sims)),
		Median: utils.Median(sims),
		Worst:  worst,
	}
}
