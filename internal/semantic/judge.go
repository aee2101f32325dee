// Package semantic provides the vision-language before/after judgment.
package semantic

import (
	"context"

	"github.com/hyperjump/kakunin/internal/models"
)

// Request carries one before/after pair plus the complaint description to the
// vision-language capability. Images are JPEG thumbnails, not full assets.
type Request struct {
	BeforeJPEG    []byte
	AfterJPEG     []byte
	ComplaintText string
}

// Judge obtains a structured resolved/not-resolved judgment for a pair.
//
// Implementations absorb external failures into the judgment itself: a
// transport failure or timeout yields Outcome FAILED, a malformed response
// yields AMBIGUOUS with confidence 0. The error return is reserved for
// request construction problems; callers can rely on always receiving a
// judgment when err is nil.
type Judge interface {
	Judge(ctx context.Context, req Request) (*models.SemanticJudgment, error)
}

// MockJudge returns a fixed judgment, for tests and offline pipelines.
type MockJudge struct {
	Judgment models.SemanticJudgment
}

// Judge returns the configured judgment.
func (m *MockJudge) Judge(ctx context.Context, req Request) (*models.SemanticJudgment, error) {
	j := m.Judgment
	return &j, nil
}
