package geo

import (
	"math"
	"testing"
)

func TestDistanceZero(t *testing.T) {
	if d := Distance(37.7749, -122.4194, 37.7749, -122.4194); d != 0 {
		t.Fatalf("expected zero distance, got %f", d)
	}
}

func TestDistanceKnownPair(t *testing.T) {
	// San Francisco to Los Angeles, roughly 347 miles great-circle.
	d := Distance(37.7749, -122.4194, 34.0522, -118.2437)
	if math.Abs(d-347.4) > 5 {
		t.Fatalf("expected ~347 miles, got %f", d)
	}
}

func TestDistanceOneDegreeLatitude(t *testing.T) {
	// One degree of latitude is about 69.1 miles.
	d := Distance(40.0, -100.0, 41.0, -100.0)
	if math.Abs(d-69.1) > 0.5 {
		t.Fatalf("expected ~69.1 miles, got %f", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Distance(37.7749, -122.4194, 34.0522, -118.2437)
	b := Distance(34.0522, -118.2437, 37.7749, -122.4194)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", a, b)
	}
}
