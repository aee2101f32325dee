package manipulation

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/hyperjump/kakunin/pkg/utils"
)

// ELAResult holds the scalar summary of an error-level analysis pass.
type ELAResult struct {
	// Energy is the mean absolute recompression difference over all
	// channels, normalized to [0,1].
	Energy float64
	// Peak is the 95th percentile of per-pixel difference magnitude,
	// normalized to [0,1]. High peak with moderate energy suggests a
	// localized edit rather than global noise.
	Peak float64
}

// ComputeELA recompresses img as JPEG at the given quality and measures the
// per-pixel absolute difference from the original. Regions inconsistent with
// the image's dominant compression history stand out in the residual.
func ComputeELA(img *image.RGBA, quality int) (*ELAResult, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("ela recompress: %w", err)
	}
	recompressed, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("ela decode: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return &ELAResult{}, nil
	}

	var sum float64
	pixelDiffs := make([]float64, 0, w*h)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			r2, g2, b2, _ := recompressed.At(x, y).RGBA()
			dr := absDiff(img.Pix[i], uint8(r2>>8))
			dg := absDiff(img.Pix[i+1], uint8(g2>>8))
			db := absDiff(img.Pix[i+2], uint8(b2>>8))
			sum += float64(dr) + float64(dg) + float64(db)
			pixelDiffs = append(pixelDiffs, float64(dr+dg+db)/3.0)
		}
	}

	return &ELAResult{
		Energy: sum / float64(w*h*3) / 255.0,
		Peak:   utils.Percentile(pixelDiffs, 95) / 255.0,
	}, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
