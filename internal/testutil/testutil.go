// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/phonon3/internal/pairmodel"
)

// Symprec is the distance tolerance used by the fixtures, in Å.
const Symprec = 1e-5

// CsClModel is the pair potential of the CsCl fixture. Only the eight
// nearest neighbours at a√3/2 interact.
var CsClModel = pairmodel.Model{Spring: 2.0, Cubic: -6.0, Cutoff: 2.8}

// CsCl returns a two-atom simple cubic crystal (a = 3 Å) in a 2×2×2
// supercell with pair-potential force constants.
func CsCl(t testing.TB) *pairmodel.System {
	t.Helper()
	return CsClSupercell(t, [3]int{2, 2, 2})
}

// CsClSupercell is CsCl with a chosen supercell.
func CsClSupercell(t testing.TB, dims [3]int) *pairmodel.System {
	t.Helper()
	sys, err := pairmodel.Build(pairmodel.CsCl(3.0, 132.905, 35.453), dims, CsClModel, Symprec)
	if err != nil {
		t.Fatalf("building CsCl fixture: %v", err)
	}
	return sys
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// MaxRelativeDiff returns max|a-b| divided by max(|a|, |b|) over both
// slices, or 0 when both are zero. The slices must have equal length.
func MaxRelativeDiff(a, b []float64) float64 {
	var diff, scale float64
	for i := range a {
		diff = math.Max(diff, math.Abs(a[i]-b[i]))
		scale = math.Max(scale, math.Max(math.Abs(a[i]), math.Abs(b[i])))
	}
	if scale == 0 {
		return 0
	}
	return diff / scale
}
