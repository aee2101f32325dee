package manipulation

import (
	"context"
	"image"
	"image/color"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/config"
	"github.com/hyperjump/kakunin/internal/imaging"
	"github.com/hyperjump/kakunin/internal/models"
)

func testDetectorConfig() *config.ManipulationConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return &cfg.Manipulation
}

func testNormalized(seed byte) *imaging.NormalizedImage {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x*4) + seed, uint8(y * 4), uint8(x + y), 255})
		}
	}
	return &imaging.NormalizedImage{
		Pixels:      img,
		Width:       64,
		Height:      64,
		ContentHash: imaging.ContentHash([]byte{seed}),
	}
}

func TestDetect_LikelihoodBounded(t *testing.T) {
	cases := []float64{0.0, 0.3, 0.9, 1.0}
	for _, score := range cases {
		d := NewDetector(testDetectorConfig(), &MockClassifier{FixedScore: score}, zap.NewNop())
		verdict, err := d.Detect(context.Background(), testNormalized(byte(score*100)))
		if err != nil {
			t.Fatalf("score %f: %v", score, err)
		}
		if verdict.Likelihood < 0 || verdict.Likelihood > 1 {
			t.Errorf("score %f: likelihood out of bounds: %f", score, verdict.Likelihood)
		}
	}
}

func TestDetect_ThresholdMonotonic(t *testing.T) {
	cfg := testDetectorConfig()
	d := NewDetector(cfg, &MockClassifier{FixedScore: 1.0}, zap.NewNop())
	high, err := d.Detect(context.Background(), testNormalized(1))
	if err != nil {
		t.Fatal(err)
	}

	d2 := NewDetector(cfg, &MockClassifier{FixedScore: 0.0}, zap.NewNop())
	low, err := d2.Detect(context.Background(), testNormalized(2))
	if err != nil {
		t.Fatal(err)
	}

	if high.Likelihood < low.Likelihood {
		t.Error("higher classifier score should not decrease likelihood")
	}
	if low.Manipulated && !high.Manipulated {
		t.Error("is_manipulated must be monotonic in likelihood")
	}
	if high.Likelihood >= cfg.Threshold && !high.Manipulated {
		t.Error("likelihood above threshold must flag manipulated")
	}
}

func TestDetect_ClassifierFailureDegrades(t *testing.T) {
	d := NewDetector(testDetectorConfig(), &MockClassifier{Err: ErrClassifierUnavailable}, zap.NewNop())
	verdict, err := d.Detect(context.Background(), testNormalized(3))
	if err != nil {
		t.Fatalf("classifier failure must not fail detection: %v", err)
	}
	if verdict.Status != models.ManipulationDegraded {
		t.Errorf("expected degraded status, got %s", verdict.Status)
	}
	if verdict.Likelihood < 0 || verdict.Likelihood > 1 {
		t.Errorf("degraded likelihood out of bounds: %f", verdict.Likelihood)
	}
}

func TestDetect_NilClassifierDegrades(t *testing.T) {
	d := NewDetector(testDetectorConfig(), nil, zap.NewNop())
	verdict, err := d.Detect(context.Background(), testNormalized(4))
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Status != models.ManipulationDegraded {
		t.Errorf("nil classifier should yield degraded verdict, got %s", verdict.Status)
	}
}

func TestDetect_CachedByContentHash(t *testing.T) {
	d := NewDetector(testDetectorConfig(), &MockClassifier{FixedScore: 0.5}, zap.NewNop())
	n := testNormalized(5)

	first, err := d.Detect(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.Detect(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second detection should return the cached verdict")
	}
}

func TestComputeELA_UniformImageLowEnergy(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	ela, err := ComputeELA(img, 90)
	if err != nil {
		t.Fatal(err)
	}
	if ela.Energy > 0.05 {
		t.Errorf("uniform image should have near-zero ELA energy, got %f", ela.Energy)
	}
	if ela.Peak < 0 || ela.Peak > 1 {
		t.Errorf("peak out of bounds: %f", ela.Peak)
	}
}

func TestComputeELA_Bounded(t *testing.T) {
	n := testNormalized(6)
	ela, err := ComputeELA(n.Pixels, 90)
	if err != nil {
		t.Fatal(err)
	}
	if ela.Energy < 0 || ela.Energy > 1 {
		t.Errorf("energy out of bounds: %f", ela.Energy)
	}
}
