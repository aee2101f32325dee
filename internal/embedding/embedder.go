// Package embedding provides visual embeddings for normalized images and
// chunks, with caching keyed by content hash and model version.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrUnavailable indicates a transport or auth failure talking to the
// embedding capability. The caller decides retry vs. degrade.
var ErrUnavailable = errors.New("embedding capability unavailable")

// ErrTimeout indicates the embedding call exceeded its deadline.
var ErrTimeout = errors.New("embedding call timed out")

// ErrDimensionMismatch indicates an attempt to compare vectors of different
// dimensionality. Always a fail-fast invariant violation, never truncated.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder maps a normalized image or chunk to a fixed-length vector.
// Implementations must be idempotent for identical input given a fixed model
// version.
type Embedder interface {
	// Embed produces a unit-normalized vector for img. key is the caller's
	// content identity (content hash, optionally suffixed with a chunk
	// index) used for caching; implementations may ignore it.
	Embed(ctx context.Context, key string, img image.Image) ([]float32, error)
	Dimensions() int
	ModelVersion() string
	Close() error
}

// CosineSimilarity returns the cosine similarity of two unit-normalized
// vectors clamped to [0,1]. Vectors of mismatched dimensionality fail with
// ErrDimensionMismatch.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	if dot < 0 {
		dot = 0
	}
	if dot > 1 {
		dot = 1
	}
	return dot, nil
}
