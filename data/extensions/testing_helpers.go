package extensions

import (
	"math"
	"testing"
)

func AssertAreEqual[T comparable](t *testing.T, name string, expected T, actual T) {
	t.Helper()
	if expected != actual {
		t.Fatalf("value mismatch for %s, expected %v, got %v", name, expected, actual)
	}
}

// AssertInDelta fails when expected and actual differ by more than tolerance
func AssertInDelta(t *testing.T, name string, expected, actual, tolerance float64) {
	t.Helper()
	if math.IsNaN(actual) || math.Abs(expected-actual) > tolerance {
		t.Fatalf("value mismatch for %s, expected %.8f (+/- %g), got %.8f", name, expected, tolerance, actual)
	}
}
