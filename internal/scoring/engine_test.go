package scoring

import (
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/config"
	"github.com/hyperjump/kakunin/internal/models"
)

func testEngine() *Engine {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return NewEngine(&cfg.Scoring, zap.NewNop())
}

func cleanVerdict(likelihood float64) *models.ManipulationVerdict {
	return &models.ManipulationVerdict{
		Likelihood:  likelihood,
		Manipulated: likelihood >= 0.6,
		Status:      models.ManipulationOK,
	}
}

func TestFuse_StrongSignalsApprove(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Inputs{
		HashSimilarity:    1.0,
		ChunkSimilarities: []float64{0.98, 0.97, 0.99, 0.96},
		BeforeVerdict:     cleanVerdict(0.05),
		AfterVerdict:      cleanVerdict(0.05),
		Judgment:          &models.SemanticJudgment{Outcome: models.JudgmentResolved, Confidence: 0.9},
	})
	if out.Recommendation != models.RecommendApprove {
		t.Errorf("expected APPROVE, got %s (score %.3f)", out.Recommendation, out.CompositeScore)
	}
	if out.CompositeScore < 0.85 {
		t.Errorf("expected score near upper bound, got %.3f", out.CompositeScore)
	}
}

func TestFuse_WeakSignalsReject(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Inputs{
		HashSimilarity:    0.2,
		ChunkSimilarities: []float64{0.1, 0.15, 0.2, 0.1},
		BeforeVerdict:     cleanVerdict(0.1),
		AfterVerdict:      cleanVerdict(0.1),
		Judgment:          &models.SemanticJudgment{Outcome: models.JudgmentNotResolved, Confidence: 0.9},
	})
	if out.Recommendation != models.RecommendReject {
		t.Errorf("expected REJECT, got %s (score %.3f)", out.Recommendation, out.CompositeScore)
	}
}

func TestFuse_ManipulatedAfterImageCapsScore(t *testing.T) {
	e := testEngine()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		out := e.Fuse(Inputs{
			HashSimilarity:    rng.Float64(),
			ChunkSimilarities: []float64{rng.Float64(), rng.Float64(), rng.Float64()},
			BeforeVerdict:     cleanVerdict(rng.Float64() * 0.5),
			AfterVerdict: &models.ManipulationVerdict{
				Likelihood:  0.9,
				Manipulated: true,
				Status:      models.ManipulationOK,
			},
			Judgment: &models.SemanticJudgment{Outcome: models.JudgmentResolved, Confidence: rng.Float64()},
		})
		if out.CompositeScore > 0.4 {
			t.Fatalf("iteration %d: score %.3f exceeds manipulation ceiling", i, out.CompositeScore)
		}
		if out.Recommendation == models.RecommendApprove {
			t.Fatalf("iteration %d: manipulated after-image must never approve", i)
		}
	}
}

func TestFuse_FailedJudgmentNeverApproves(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Inputs{
		HashSimilarity:    1.0,
		ChunkSimilarities: []float64{1, 1, 1, 1},
		BeforeVerdict:     cleanVerdict(0),
		AfterVerdict:      cleanVerdict(0),
		Judgment:          &models.SemanticJudgment{Outcome: models.JudgmentFailed},
	})
	if out.Recommendation == models.RecommendApprove {
		t.Errorf("FAILED judgment must not auto-approve, got %s", out.Recommendation)
	}
	if out.Recommendation != models.RecommendNeedsReview {
		t.Errorf("expected NEEDS_REVIEW with strong remaining signals, got %s", out.Recommendation)
	}
}

func TestFuse_RenormalizationOnMissingSignal(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Inputs{
		HashSimilarity:    0.8,
		ChunkSimilarities: []float64{0.8, 0.8},
		BeforeVerdict:     cleanVerdict(0),
		AfterVerdict:      cleanVerdict(0),
		Judgment:          nil,
	})
	sum := 0.0
	for _, s := range out.Signals {
		if s.Available {
			sum += s.Weight
		} else if s.Weight != 0 {
			t.Errorf("unavailable signal %s carries weight %.3f", s.Name, s.Weight)
		}
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("available weights should sum to 1, got %.4f", sum)
	}
	if out.CompositeScore < 0 || out.CompositeScore > 1 {
		t.Errorf("score out of bounds: %.4f", out.CompositeScore)
	}
}

func TestFuse_OutOfRadiusRejects(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Inputs{
		HashSimilarity:    1.0,
		ChunkSimilarities: []float64{0.99, 0.98, 0.99, 0.97},
		BeforeVerdict:     cleanVerdict(0.05),
		AfterVerdict:      cleanVerdict(0.05),
		Judgment:          &models.SemanticJudgment{Outcome: models.JudgmentResolved, Confidence: 0.95},
		DistanceM:         180,
	})
	if out.Recommendation != models.RecommendReject {
		t.Errorf("proof 180m away must reject regardless of score, got %s (score %.3f)",
			out.Recommendation, out.CompositeScore)
	}
}

func TestFuse_WithinRadiusUnaffected(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Inputs{
		HashSimilarity:    1.0,
		ChunkSimilarities: []float64{0.99, 0.98, 0.99, 0.97},
		BeforeVerdict:     cleanVerdict(0.05),
		AfterVerdict:      cleanVerdict(0.05),
		Judgment:          &models.SemanticJudgment{Outcome: models.JudgmentResolved, Confidence: 0.95},
		DistanceM:         50,
	})
	if out.Recommendation != models.RecommendApprove {
		t.Errorf("proof exactly at the radius should still approve, got %s", out.Recommendation)
	}
}

func TestFuse_RecycledProofRejects(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Inputs{
		HashSimilarity:    1.0,
		ChunkSimilarities: []float64{1, 1, 1, 1},
		BeforeVerdict:     cleanVerdict(0),
		AfterVerdict:      cleanVerdict(0),
		Judgment:          &models.SemanticJudgment{Outcome: models.JudgmentResolved, Confidence: 0.95},
		Recycled:          true,
	})
	if out.Recommendation != models.RecommendReject {
		t.Errorf("recycled proof must reject, got %s", out.Recommendation)
	}
}

func TestFuse_UnknownManipulationForcesReview(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Inputs{
		HashSimilarity:    1.0,
		ChunkSimilarities: []float64{1, 1, 1, 1},
		BeforeVerdict:     cleanVerdict(0),
		AfterVerdict:      &models.ManipulationVerdict{Status: models.ManipulationUnknown},
		Judgment:          &models.SemanticJudgment{Outcome: models.JudgmentResolved, Confidence: 0.95},
	})
	if out.Recommendation == models.RecommendApprove {
		t.Errorf("unknown manipulation status must not approve, got %s", out.Recommendation)
	}
}

func TestFuse_AmbiguousLandsInReviewBand(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Inputs{
		HashSimilarity:    0.6,
		ChunkSimilarities: []float64{0.6, 0.55, 0.65},
		BeforeVerdict:     cleanVerdict(0.1),
		AfterVerdict:      cleanVerdict(0.1),
		Judgment:          &models.SemanticJudgment{Outcome: models.JudgmentAmbiguous, Confidence: 0.8},
	})
	if out.Recommendation != models.RecommendNeedsReview {
		t.Errorf("expected NEEDS_REVIEW, got %s (score %.3f)", out.Recommendation, out.CompositeScore)
	}
}

func TestChunkStats(t *testing.T) {
	stats := chunkStats([]float64{0.9, 0.5, 0.7})
	if stats.Worst != 0.5 {
		t.Errorf("worst: got %f", stats.Worst)
	}
	if stats.Median != 0.7 {
		t.Errorf("median: got %f", stats.Median)
	}
	if stats.Mean < 0.699 || stats.Mean > 0.701 {
		t.Errorf("mean: got %f", stats.Mean)
	}
	empty := chunkStats(nil)
	if empty.Mean != 0 || empty.Median != 0 || empty.Worst != 0 {
		t.Errorf("empty input should zero stats: %+v", empty)
	}
}

func TestFuse_Deterministic(t *testing.T) {
	e := testEngine()
	in := Inputs{
		HashSimilarity:    0.73,
		ChunkSimilarities: []float64{0.7, 0.81, 0.66, 0.9},
		BeforeVerdict:     cleanVerdict(0.2),
		AfterVerdict:      cleanVerdict(0.3),
		Judgment:          &models.SemanticJudgment{Outcome: models.JudgmentResolved, Confidence: 0.6},
	}
	a := e.Fuse(in)
	b := e.Fuse(in)
	if a.CompositeScore != b.CompositeScore || a.Recommendation != b.Recommendation {
		t.Errorf("fusion not deterministic: %v vs %v", a, b)
	}
}
