package utils

import (
	"math"
	"testing"
)

func TestHaversineMeters_SamePoint(t *testing.T) {
	if d := HaversineMeters(35.6812, 139.7671, 35.6812, 139.7671); d != 0 {
		t.Errorf("same point should be 0m, got %f", d)
	}
}

func TestHaversineMeters_KnownDistances(t *testing.T) {
	// One millidegree of latitude is about 111.2m everywhere.
	d := HaversineMeters(35.0, 139.0, 35.001, 139.0)
	if math.Abs(d-111.2) > 1.0 {
		t.Errorf("meridian millidegree: want ~111.2m, got %f", d)
	}
	// One millidegree of longitude shrinks with cos(latitude).
	d = HaversineMeters(35.0, 139.0, 35.0, 139.001)
	if math.Abs(d-91.1) > 1.0 {
		t.Errorf("parallel millidegree at 35N: want ~91.1m, got %f", d)
	}
}

func TestHaversineMeters_Symmetric(t *testing.T) {
	a := HaversineMeters(12.97, 77.59, 12.98, 77.60)
	b := HaversineMeters(12.98, 77.60, 12.97, 77.59)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("distance should be symmetric: %f vs %f", a, b)
	}
}
