// Package manipulation provides single-image tamper likelihood analysis,
// combining error-level analysis with a learned classifier score.
package manipulation

import (
	"context"
	"errors"
	"image"
)

// ErrClassifierUnavailable indicates the learned classifier could not score
// the image. The detector degrades to ELA-only rather than failing the run.
var ErrClassifierUnavailable = errors.New("manipulation classifier unavailable")

// Classifier scores an image for manipulation probability in [0,1].
type Classifier interface {
	Score(ctx context.Context, img image.Image) (float64, error)
	Close() error
}

// MockClassifier returns a fixed score, or a fixed error. For tests and for
// running the detector with the classifier disabled.
type MockClassifier struct {
	FixedScore float64
	Err        error
}

// Score returns the configured score or error.
func (m *MockClassifier) Score(ctx context.Context, img image.Image) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.FixedScore, nil
}

// Close is a no-op.
func (m *MockClassifier) Close() error { return nil }
