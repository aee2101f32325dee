package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/embedding"
	"github.com/hyperjump/kakunin/internal/imaging"
	"github.com/hyperjump/kakunin/internal/models"
	"github.com/hyperjump/kakunin/internal/scoring"
	"github.com/hyperjump/kakunin/internal/semantic"
	"github.com/hyperjump/kakunin/pkg/utils"
)

// Verify runs the full analysis for one (complaint, proof) pair and returns
// the fused verification result. Decode failure of either image is fatal and
// produces no result; every other analysis failure degrades to a warning on
// the result. A storage write failure is flagged, not fatal.
func (p *Pipeline) Verify(ctx context.Context, complaintID, proofID string) (*models.VerificationResult, error) {
	start := time.Now()
	state := models.StateReceived

	complaint, err := p.store.GetComplaint(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	proof, err := p.store.GetProof(ctx, proofID)
	if err != nil {
		return nil, err
	}
	if proof.ComplaintID != complaint.ID {
		return nil, fmt.Errorf("proof %s does not belong to complaint %s", proofID, complaintID)
	}

	before, err := p.loadNormalized(complaint.MediaID)
	if err != nil {
		return nil, fmt.Errorf("complaint image: %w", err)
	}
	after, err := p.loadNormalized(proof.MediaID)
	if err != nil {
		return nil, fmt.Errorf("proof image: %w", err)
	}
	state = models.StateNormalized

	hashSim := imaging.HashSimilarity(imaging.PerceptualHash(before), imaging.PerceptualHash(after))
	distanceM := utils.HaversineMeters(complaint.Latitude, complaint.Longitude, proof.Latitude, proof.Longitude)

	var (
		wg            sync.WaitGroup
		mu            sync.Mutex
		warnings      []string
		chunkSims     []float64
		beforeVerdict *models.ManipulationVerdict
		afterVerdict  *models.ManipulationVerdict
		judgment      *models.SemanticJudgment
	)
	warn := func(format string, args ...any) {
		mu.Lock()
		warnings = append(warnings, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		sims, err := p.chunkSimilarities(ctx, before, after)
		if err != nil {
			p.logger.Warn("chunk similarity unavailable", zap.Error(err))
			warn("chunk similarity unavailable: %v", err)
			return
		}
		chunkSims = sims
	}()
	go func() {
		defer wg.Done()
		beforeVerdict = p.detect(ctx, before, warn, "before")
	}()
	go func() {
		defer wg.Done()
		afterVerdict = p.detect(ctx, after, warn, "after")
	}()
	go func() {
		defer wg.Done()
		judgment = p.judgePair(ctx, complaint, proof, before, after, warn)
	}()
	wg.Wait()
	state = models.StateAnalyzed

	outcome := p.engine.Fuse(scoring.Inputs{
		HashSimilarity:    hashSim,
		ChunkSimilarities: chunkSims,
		BeforeVerdict:     beforeVerdict,
		AfterVerdict:      afterVerdict,
		Judgment:          judgment,
		Recycled:          proof.Recycled,
		DistanceM:         distanceM,
	})
	state = models.StateScored

	result := &models.VerificationResult{
		ID:                uuid.NewString(),
		ComplaintID:       complaint.ID,
		ProofID:           proof.ID,
		HashSimilarity:    hashSim,
		ChunkSimilarities: chunkSims,
		ChunkStats:        outcome.ChunkStats,
		BeforeVerdict:     beforeVerdict,
		AfterVerdict:      afterVerdict,
		Judgment:          judgment,
		DistanceM:         distanceM,
		WithinRadius:      distanceM <= p.cfg.Scoring.SpatialRadiusM,
		CompositeScore:    outcome.CompositeScore,
		Recommendation:    outcome.Recommendation,
		Signals:           outcome.Signals,
		Explanation:       outcome.Explanation,
		Warnings:          warnings,
		CreatedAt:         time.Now(),
	}

	if err := p.store.SaveResult(ctx, result); err != nil {
		p.logger.Error("verification result not durably saved",
			zap.String("result_id", result.ID), zap.Error(err))
		result.Warnings = append(result.Warnings, "result not durably saved: "+err.Error())
		if result.Recommendation == models.RecommendApprove {
			result.Recommendation = models.RecommendNeedsReview
		}
	} else {
		state = models.StatePersisted
	}
	result.State = state
	result.ProcessingTimeMS = time.Since(start).Milliseconds()

	p.logger.Info("verification complete",
		zap.String("result_id", result.ID),
		zap.String("complaint_id", complaint.ID),
		zap.String("proof_id", proof.ID),
		zap.Float64("composite_score", result.CompositeScore),
		zap.String("recommendation", string(result.Recommendation)),
		zap.Int64("processing_ms", result.ProcessingTimeMS),
	)
	return result, nil
}

func (p *Pipeline) loadNormalized(mediaID string) (*imaging.NormalizedImage, error) {
	raw, err := p.media.Raw(mediaID)
	if err != nil {
		return nil, err
	}
	return p.codec.DecodeAndNormalize(raw)
}

// chunkSimilarities embeds the aligned chunk grids of both images and returns
// the index-aligned cosine similarities. A grid finer than the image leaves
// some cells without pixels; those carry no signal and are skipped on both
// sides to keep the pairing aligned.
func (p *Pipeline) chunkSimilarities(ctx context.Context, before, after *imaging.NormalizedImage) ([]float64, error) {
	beforeChunks := p.chunker.Chunk(before)
	afterChunks := p.chunker.Chunk(after)
	if len(beforeChunks) != len(afterChunks) {
		return nil, fmt.Errorf("chunk grids differ: %d vs %d", len(beforeChunks), len(afterChunks))
	}
	sims := make([]float64, 0, len(beforeChunks))
	for i := range beforeChunks {
		if beforeChunks[i].Rect.Empty() || afterChunks[i].Rect.Empty() {
			continue
		}
		bv, err := p.embedChunk(ctx, before.ContentHash, beforeChunks[i])
		if err != nil {
			return nil, err
		}
		av, err := p.embedChunk(ctx, after.ContentHash, afterChunks[i])
		if err != nil {
			return nil, err
		}
		sim, err := embedding.CosineSimilarity(bv, av)
		if err != nil {
			return nil, err
		}
		sims = append(sims, sim)
	}
	return sims, nil
}

func (p *Pipeline) embedChunk(ctx context.Context, contentHash string, chunk imaging.Chunk) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Embedding.TimeoutSeconds)*time.Second)
	defer cancel()
	key := fmt.Sprintf("%s-chunk-%d", contentHash, chunk.Index)
	return p.embedder.Embed(callCtx, key, chunk.Pixels)
}

// detect runs manipulation analysis on one image. Total failure yields an
// unknown-status verdict, which the scoring engine treats as untrustworthy.
func (p *Pipeline) detect(ctx context.Context, n *imaging.NormalizedImage, warn func(string, ...any), which string) *models.ManipulationVerdict {
	verdict, err := p.detector.Detect(ctx, n)
	if err != nil {
		p.logger.Warn("manipulation analysis failed",
			zap.String("image", which), zap.Error(err))
		warn("%s-image manipulation analysis failed: %v", which, err)
		return &models.ManipulationVerdict{Status: models.ManipulationUnknown}
	}
	if verdict.Status == models.ManipulationDegraded {
		warn("%s-image manipulation verdict is ELA-only (classifier unavailable)", which)
	}
	return verdict
}

// judgePair sends the before/after thumbnails and complaint text to the
// vision-language judge. Never returns nil.
func (p *Pipeline) judgePair(ctx context.Context, complaint *models.ComplaintRecord, proof *models.ProofRecord, before, after *imaging.NormalizedImage, warn func(string, ...any)) *models.SemanticJudgment {
	beforeJPEG, err := p.thumbnail(complaint.MediaID, before)
	if err == nil {
		var afterJPEG []byte
		afterJPEG, err = p.thumbnail(proof.MediaID, after)
		if err == nil {
			judgment, jerr := p.judge.Judge(ctx, semantic.Request{
				BeforeJPEG:    beforeJPEG,
				AfterJPEG:     afterJPEG,
				ComplaintText: complaint.Description,
			})
			if jerr == nil {
				if judgment.Outcome == models.JudgmentFailed {
					warn("semantic judgment unavailable: %s", judgment.Rationale)
				}
				return judgment
			}
			err = jerr
		}
	}
	p.logger.Warn("semantic judgment failed", zap.Error(err))
	warn("semantic judgment unavailable: %v", err)
	return &models.SemanticJudgment{
		Outcome:   models.JudgmentFailed,
		Rationale: err.Error(),
	}
}

// thumbnail prefers the stored thumbnail and regenerates it when missing.
func (p *Pipeline) thumbnail(mediaID string, n *imaging.NormalizedImage) ([]byte, error) {
	if data, err := p.media.Thumbnail(mediaID); err == nil {
		return data, nil
	}
	return p.codec.Thumbnail(n, p.cfg.Imaging.ThumbnailEdge, p.cfg.Imaging.ThumbnailQuality)
}
