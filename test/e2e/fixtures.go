// Package e2e provides end-to-end tests; this file builds deterministic
// photo-like fixtures for the verification scenarios.
package e2e

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
)

// SceneJPEG renders a deterministic pseudo-photo for the given seed: a noisy
// background with a handful of solid blocks. The same seed always produces the
// same bytes; different seeds produce visually distinct images.
func SceneJPEG(seed int64, w, h int) ([]byte, error) {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	base := color.RGBA{
		R: uint8(100 + rng.Intn(100)),
		G: uint8(100 + rng.Intn(100)),
		B: uint8(100 + rng.Intn(100)),
		A: 255,
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			noise := uint8(rng.Intn(16))
			img.SetRGBA(x, y, color.RGBA{
				R: base.R + noise,
				G: base.G + noise,
				B: base.B + noise,
				A: 255,
			})
		}
	}
	for i := 0; i < 5; i++ {
		bw := w/8 + rng.Intn(w/8)
		bh := h/8 + rng.Intn(h/8)
		bx := rng.Intn(w - bw)
		by := rng.Intn(h - bh)
		c := color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
		for y := by; y < by+bh; y++ {
			for x := bx; x < bx+bw; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
