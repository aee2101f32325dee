package manipulation

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/config"
	"github.com/hyperjump/kakunin/internal/imaging"
	"github.com/hyperjump/kakunin/internal/models"
	"github.com/hyperjump/kakunin/pkg/utils"
)

// Detector fuses ELA energy with a learned classifier score into a bounded
// manipulation likelihood. Verdicts are cached by content hash; they are
// immutable per image.
type Detector struct {
	cfg        *config.ManipulationConfig
	classifier Classifier
	cache      *gocache.Cache
	locks      *utils.KeyedLocks
	logger     *zap.Logger
}

// NewDetector creates a detector. classifier may be nil, in which case every
// verdict is ELA-only (degraded).
func NewDetector(cfg *config.ManipulationConfig, classifier Classifier, logger *zap.Logger) *Detector {
	return &Detector{
		cfg:        cfg,
		classifier: classifier,
		cache:      gocache.New(time.Hour, 2*time.Hour),
		locks:      utils.NewKeyedLocks(),
		logger:     logger,
	}
}

// Detect analyzes a single image for tamper evidence. Classifier failure is
// absorbed: the verdict degrades to ELA-only with the weight renormalized and
// Status set to degraded, never silently treated as clean. Returns an error
// only when no signal at all could be computed.
func (d *Detector) Detect(ctx context.Context, n *imaging.NormalizedImage) (*models.ManipulationVerdict, error) {
	if v, ok := d.cache.Get(n.ContentHash); ok {
		return v.(*models.ManipulationVerdict), nil
	}
	unlock := d.locks.Lock(n.ContentHash)
	defer unlock()
	if v, ok := d.cache.Get(n.ContentHash); ok {
		return v.(*models.ManipulationVerdict), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(d.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	ela, err := ComputeELA(n.Pixels, d.cfg.ELAQuality)
	if err != nil {
		return nil, fmt.Errorf("manipulation analysis failed: %w", err)
	}
	elaSignal := normalizeEnergy(ela.Energy, d.cfg.ELAScale)

	verdict := &models.ManipulationVerdict{
		ELAEnergy: ela.Energy,
		ELAPeak:   ela.Peak,
		Status:    models.ManipulationOK,
	}

	var likelihood float64
	if d.classifier == nil {
		verdict.Status = models.ManipulationDegraded
		likelihood = elaSignal
	} else {
		score, clsErr := d.classifier.Score(callCtx, n.Pixels)
		if clsErr != nil {
			d.logger.Warn("classifier unavailable, degrading to ELA-only",
				zap.String("content_hash", n.ContentHash),
				zap.Error(clsErr),
			)
			verdict.Status = models.ManipulationDegraded
			likelihood = elaSignal
		} else {
			verdict.ClassifierScore = score
			likelihood = d.cfg.ELAWeight*elaSignal + d.cfg.ClassifierWeight*score
		}
	}

	verdict.Likelihood = utils.Clamp01(likelihood)
	verdict.Manipulated = verdict.Likelihood >= d.cfg.Threshold

	d.cache.SetDefault(n.ContentHash, verdict)
	return verdict, nil
}

// normalizeEnergy maps raw ELA energy onto [0,1] against a fixed scale: an
// energy at or above scale saturates to 1.
func normalizeEnergy(energy, scale float64) float64 {
	if scale <= 0 {
		return utils.Clamp01(energy)
	}
	return utils.Clamp01(energy / scale)
}
