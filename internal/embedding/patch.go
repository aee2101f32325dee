package embedding

import (
	"context"
	"image"

	"golang.org/x/image/draw"

	"github.com/hyperjump/kakunin/pkg/utils"
)

// PatchEmbedder is a local, fully deterministic embedder: it downsamples the
// image to a small RGB raster and uses the flattened, unit-normalized pixel
// values as the vector. No external calls; the default when no remote
// embedding capability is configured. Coarse compared to a learned model but
// stable, fast, and good enough to rank near-duplicates.
type PatchEmbedder struct {
	dimensions int
	side       int
}

// NewPatchEmbedder creates a patch embedder producing vectors of the given
// dimensionality.
func NewPatchEmbedder(dimensions int) *PatchEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	// Smallest square raster whose RGB values cover the dimensionality.
	side := 1
	for side*side*3 < dimensions {
		side++
	}
	return &PatchEmbedder{dimensions: dimensions, side: side}
}

// Embed downsamples img and returns the first Dimensions() normalized RGB values.
func (e *PatchEmbedder) Embed(ctx context.Context, key string, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	small := image.NewRGBA(image.Rect(0, 0, e.side, e.side))
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	vec := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		pixel := i / 3
		channel := i % 3
		off := small.PixOffset(pixel%e.side, pixel/e.side)
		vec[i] = float32(small.Pix[off+channel]) / 255.0
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the vector length.
func (e *PatchEmbedder) Dimensions() int { return e.dimensions }

// ModelVersion identifies the embedding scheme for cache keying.
func (e *PatchEmbedder) ModelVersion() string { return "patch-v1" }

// Close is a no-op.
func (e *PatchEmbedder) Close() error { return nil }
