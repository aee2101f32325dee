package imaging

import (
	"image/color"
	"testing"

	"github.com/hyperjump/kakunin/internal/config"
)

func decodeTestImage(t *testing.T, w, h int) *NormalizedImage {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	codec := NewCodec(&cfg.Imaging)
	n, err := codec.DecodeAndNormalize(testPNG(t, w, h))
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestHashSimilarity_Reflexive(t *testing.T) {
	n := decodeTestImage(t, 300, 200)
	h := PerceptualHash(n)
	if got := HashSimilarity(h, h); got != 1.0 {
		t.Errorf("sim(h,h) should be 1.0, got %f", got)
	}
}

func TestHashSimilarity_Symmetric(t *testing.T) {
	a := PerceptualHash(decodeTestImage(t, 300, 200))
	b := PerceptualHash(decodeTestImage(t, 200, 300))
	if HashSimilarity(a, b) != HashSimilarity(b, a) {
		t.Error("similarity should be symmetric")
	}
}

func TestHashSimilarity_Bounds(t *testing.T) {
	// Fully opposite hashes have the maximum distance and similarity 0.
	var a, b PHash = 0, ^PHash(0)
	if got := HashSimilarity(a, b); got != 0.0 {
		t.Errorf("max distance should map to 0.0, got %f", got)
	}
	if got := HammingDistance(a, b); got != 64 {
		t.Errorf("expected distance 64, got %d", got)
	}
}

func TestPerceptualHash_SmallChangeSmallDistance(t *testing.T) {
	n := decodeTestImage(t, 320, 240)
	orig := PerceptualHash(n)

	// Perturb a small region; the hash should move only slightly.
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			n.Pixels.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	perturbed := PerceptualHash(n)

	if d := HammingDistance(orig, perturbed); d > 20 {
		t.Errorf("small local change moved hash by %d bits", d)
	}
}

func TestPerceptualHash_DistinctContentDiffers(t *testing.T) {
	a := PerceptualHash(decodeTestImage(t, 320, 240))

	// An inverted gradient is structurally different content.
	n := decodeTestImage(t, 320, 240)
	for y := 0; y < n.Height; y++ {
		for x := 0; x < n.Width; x++ {
			i := n.Pixels.PixOffset(x, y)
			n.Pixels.Pix[i] = 255 - n.Pixels.Pix[i]
			n.Pixels.Pix[i+1] = 255 - n.Pixels.Pix[i+1]
			n.Pixels.Pix[i+2] = 255 - n.Pixels.Pix[i+2]
		}
	}
	b := PerceptualHash(n)

	if a == b {
		t.Error("inverted image should not hash identically")
	}
}

func TestParsePHash_RoundTrip(t *testing.T) {
	h := PHash(0xdeadbeefcafe1234)
	parsed, err := ParsePHash(h.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != h {
		t.Errorf("round trip mismatch: %v != %v", parsed, h)
	}
}

func TestParsePHash_Invalid(t *testing.T) {
	if _, err := ParsePHash("not-hex"); err == nil {
		t.Error("expected error for invalid hash string")
	}
}
