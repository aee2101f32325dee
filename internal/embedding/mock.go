package embedding

import (
	"context"
	"hash/fnv"
	"image"
	"math"

	"github.com/hyperjump/kakunin/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It derives a vector
// from a sparse sample of the pixel content so that identical images always
// get identical embeddings and different images diverge.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensionality.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on a pixel-content hash.
func (e *MockEmbedder) Embed(ctx context.Context, key string, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := pixelHash(img)
	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = float32(math.Sin(float64(seed)*float64(i+1))*0.1 + 0.01)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the vector length.
func (e *MockEmbedder) Dimensions() int { return e.dimensions }

// ModelVersion identifies the mock scheme.
func (e *MockEmbedder) ModelVersion() string { return "mock-v1" }

// Close is a no-op.
func (e *MockEmbedder) Close() error { return nil }

// pixelHash hashes a sparse grid of pixels, enough to distinguish images
// without walking every pixel.
func pixelHash(img image.Image) uint32 {
	h := fnv.New32a()
	b := img.Bounds()
	stepX := b.Dx() / 16
	if stepX < 1 {
		stepX = 1
	}
	stepY := b.Dy() / 16
	if stepY < 1 {
		stepY = 1
	}
	var buf [6]byte
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			buf[0] = byte(r >> 8)
			buf[1] = byte(g >> 8)
			buf[2] = byte(bl >> 8)
			buf[3] = byte(x)
			buf[4] = byte(y)
			buf[5] = 0
			_, _ = h.Write(buf[:])
		}
	}
	return h.Sum32()
}
