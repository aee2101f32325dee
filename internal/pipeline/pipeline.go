// Package pipeline orchestrates ingestion and verification runs, sequencing
// the imaging, embedding, manipulation, and semantic analyses and fusing their
// signals into a verification result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/config"
	"github.com/hyperjump/kakunin/internal/embedding"
	"github.com/hyperjump/kakunin/internal/imaging"
	"github.com/hyperjump/kakunin/internal/manipulation"
	"github.com/hyperjump/kakunin/internal/models"
	"github.com/hyperjump/kakunin/internal/scoring"
	"github.com/hyperjump/kakunin/internal/semantic"
	"github.com/hyperjump/kakunin/internal/storage"
	"github.com/hyperjump/kakunin/internal/vector"
)

// Vector index metadata keys.
const (
	metaKind        = "kind"
	metaComplaintID = "complaint_id"
	metaRecordID    = "record_id"
)

// Pipeline wires the analysis components together. Safe for concurrent use;
// per-run state lives on the stack of each call.
type Pipeline struct {
	cfg      *config.Config
	codec    *imaging.Codec
	chunker  *imaging.Chunker
	embedder embedding.Embedder
	detector *manipulation.Detector
	judge    semantic.Judge
	engine   *scoring.Engine
	store    storage.Storage
	media    *storage.MediaStore
	index    vector.Index
	logger   *zap.Logger
}

// New assembles a pipeline from its collaborators.
func New(
	cfg *config.Config,
	embedder embedding.Embedder,
	detector *manipulation.Detector,
	judge semantic.Judge,
	store storage.Storage,
	media *storage.MediaStore,
	index vector.Index,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		codec:    imaging.NewCodec(&cfg.Imaging),
		chunker:  imaging.NewChunker(cfg.Imaging.GridRows, cfg.Imaging.GridCols),
		embedder: embedder,
		detector: detector,
		judge:    judge,
		engine:   scoring.NewEngine(&cfg.Scoring, logger),
		store:    store,
		media:    media,
		index:    index,
		logger:   logger,
	}
}

// IngestComplaint normalizes and registers a before-state image with its
// capture coordinates. Decode failures are fatal; embedding failures only
// cost the complaint its entry in the similarity index.
func (p *Pipeline) IngestComplaint(ctx context.Context, imageBytes []byte, description string, lat, lon float64, metadata map[string]string) (*models.AssetRef, error) {
	n, err := p.codec.DecodeAndNormalize(imageBytes)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	mediaID := uuid.NewString()

	if err := p.saveMedia(mediaID, imageBytes, n); err != nil {
		return nil, fmt.Errorf("failed to store complaint media: %w", err)
	}

	record := &models.ComplaintRecord{
		ID:          id,
		MediaID:     mediaID,
		Description: description,
		ContentHash: n.ContentHash,
		PHash:       imaging.PerceptualHash(n).String(),
		Latitude:    lat,
		Longitude:   lon,
		Metadata:    metadata,
	}
	if err := p.store.SaveComplaint(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save complaint: %w", err)
	}

	if vec, err := p.embed(ctx, n); err != nil {
		p.logger.Warn("complaint not indexed, embedding failed",
			zap.String("complaint_id", id), zap.Error(err))
	} else if err := p.index.Upsert(ctx, "complaint-"+id, vec, map[string]string{
		metaKind:        string(models.AssetComplaint),
		metaComplaintID: id,
		metaRecordID:    id,
	}); err != nil {
		p.logger.Warn("complaint index upsert failed",
			zap.String("complaint_id", id), zap.Error(err))
	}

	p.logger.Info("complaint ingested",
		zap.String("complaint_id", id),
		zap.String("content_hash", n.ContentHash),
	)
	return &models.AssetRef{ID: id, MediaID: mediaID, ContentHash: n.ContentHash}, nil
}

// IngestProof normalizes and registers an after-state image for an existing
// complaint, and flags it when its embedding near-duplicates a proof already
// submitted for a different complaint. The capture coordinates are checked
// against the complaint's at verification time.
func (p *Pipeline) IngestProof(ctx context.Context, imageBytes []byte, complaintID string, lat, lon float64) (*models.AssetRef, error) {
	if _, err := p.store.GetComplaint(ctx, complaintID); err != nil {
		return nil, err
	}
	n, err := p.codec.DecodeAndNormalize(imageBytes)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	mediaID := uuid.NewString()

	if err := p.saveMedia(mediaID, imageBytes, n); err != nil {
		return nil, fmt.Errorf("failed to store proof media: %w", err)
	}

	record := &models.ProofRecord{
		ID:          id,
		ComplaintID: complaintID,
		MediaID:     mediaID,
		ContentHash: n.ContentHash,
		PHash:       imaging.PerceptualHash(n).String(),
		Latitude:    lat,
		Longitude:   lon,
	}

	vec, err := p.embed(ctx, n)
	if err != nil {
		p.logger.Warn("proof not indexed, embedding failed",
			zap.String("proof_id", id), zap.Error(err))
	} else {
		record.Recycled, record.RecycledOf = p.detectRecycled(ctx, vec, complaintID)
		if err := p.index.Upsert(ctx, "proof-"+id, vec, map[string]string{
			metaKind:        string(models.AssetProof),
			metaComplaintID: complaintID,
			metaRecordID:    id,
		}); err != nil {
			p.logger.Warn("proof index upsert failed",
				zap.String("proof_id", id), zap.Error(err))
		}
	}

	if err := p.store.SaveProof(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save proof: %w", err)
	}

	p.logger.Info("proof ingested",
		zap.String("proof_id", id),
		zap.String("complaint_id", complaintID),
		zap.Bool("recycled", record.Recycled),
	)
	return &models.AssetRef{ID: id, MediaID: mediaID, ContentHash: n.ContentHash}, nil
}

// detectRecycled looks for a prior proof embedding near-identical to vec that
// was submitted for a different complaint.
func (p *Pipeline) detectRecycled(ctx context.Context, vec []float32, complaintID string) (bool, string) {
	hits, err := p.index.Query(ctx, vec, 5)
	if err != nil {
		p.logger.Warn("recycled-proof lookup failed", zap.Error(err))
		return false, ""
	}
	for _, hit := range hits {
		if hit.Metadata[metaKind] != string(models.AssetProof) {
			continue
		}
		if hit.Metadata[metaComplaintID] == complaintID {
			continue
		}
		if hit.Score >= p.cfg.Scoring.RecycledThreshold {
			return true, hit.Metadata[metaRecordID]
		}
	}
	return false, ""
}

func (p *Pipeline) saveMedia(mediaID string, raw []byte, n *imaging.NormalizedImage) error {
	if err := p.media.SaveRaw(mediaID, raw); err != nil {
		return err
	}
	thumb, err := p.codec.Thumbnail(n, p.cfg.Imaging.ThumbnailEdge, p.cfg.Imaging.ThumbnailQuality)
	if err != nil {
		return err
	}
	return p.media.SaveThumbnail(mediaID, thumb)
}

// embed runs the embedder under its configured timeout, keyed by content hash
// so repeated submissions of the same bytes hit the cache.
func (p *Pipeline) embed(ctx context.Context, n *imaging.NormalizedImage) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Embedding.TimeoutSeconds)*time.Second)
	defer cancel()
	return p.embedder.Embed(callCtx, n.ContentHash, n.Pixels)
}

// Close releases pipeline-owned resources.
func (p *Pipeline) Close() error {
	var errs []error
	if err := p.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.index.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
