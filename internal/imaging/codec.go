// Package imaging provides image decoding, normalization, perceptual hashing,
// and grid chunking for before/after comparison.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/hyperjump/kakunin/internal/config"
)

// ErrDecode indicates unsupported or corrupt image input. Fatal to a
// verification run: no image, no pipeline.
var ErrDecode = errors.New("image decode failed")

// NormalizedImage is the canonical form of an ingested image: flattened to
// RGBA over white and downsized (never upsized) to the configured max edge
// with a fixed deterministic resampler, so identical bytes always produce a
// bit-identical raster.
type NormalizedImage struct {
	Pixels      *image.RGBA
	Width       int
	Height      int
	ContentHash string
}

// Codec decodes and normalizes raw image bytes.
type Codec struct {
	maxEdge      int
	maxBytes     int64
	maxPixelEdge int
}

// NewCodec creates a codec with the given imaging settings.
func NewCodec(cfg *config.ImagingConfig) *Codec {
	return &Codec{
		maxEdge:      cfg.MaxEdge,
		maxBytes:     cfg.MaxBytes,
		maxPixelEdge: cfg.MaxPixelEdge,
	}
}

// ContentHash returns the hex SHA-256 of raw image bytes, used as the cache
// and dedup key for all derived signals.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DecodeAndNormalize decodes data, flattens it to RGBA over a white
// background, and downsizes it to the canonical max edge preserving aspect
// ratio. Returns an error wrapping ErrDecode on unsupported or corrupt input
// and on inputs exceeding the byte or pixel limits.
func (c *Codec) DecodeAndNormalize(data []byte) (*NormalizedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: input exceeds %d bytes", ErrDecode, c.maxBytes)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %s image has empty bounds", ErrDecode, format)
	}
	if c.maxPixelEdge > 0 && (w > c.maxPixelEdge || h > c.maxPixelEdge) {
		return nil, fmt.Errorf("%w: %dx%d exceeds max pixel edge %d", ErrDecode, w, h, c.maxPixelEdge)
	}

	outW, outH := fitWithin(w, h, c.maxEdge)
	rgba := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	// Catmull-Rom is fully deterministic, so repeated calls on identical
	// bytes are bit-reproducible.
	draw.CatmullRom.Scale(rgba, rgba.Bounds(), src, bounds, draw.Over, nil)

	return &NormalizedImage{
		Pixels:      rgba,
		Width:       outW,
		Height:      outH,
		ContentHash: ContentHash(data),
	}, nil
}

// Thumbnail encodes a JPEG thumbnail of n with the given max edge and
// quality. Used as the vision-language payload and for review UIs.
func (c *Codec) Thumbnail(n *NormalizedImage, maxEdge, quality int) ([]byte, error) {
	outW, outH := fitWithin(n.Width, n.Height, maxEdge)
	thumb := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(thumb, thumb.Bounds(), n.Pixels, n.Pixels.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin returns dimensions scaled down to fit maxEdge, preserving aspect
// ratio. Never upsizes.
func fitWithin(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		outW := maxEdge
		outH := h * maxEdge / w
		if outH < 1 {
			outH = 1
		}
		return outW, outH
	}
	outH := maxEdge
	outW := w * maxEdge / h
	if outW < 1 {
		outW = 1
	}
	return outW, outH
}
