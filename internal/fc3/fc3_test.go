package fc3

import (
	"errors"
	"testing"
)

func TestFromData(t *testing.T) {
	if _, err := FromData(2, make([]float64, 2*2*2*27)); err != nil {
		t.Fatalf("FromData with matching length: %v", err)
	}
	for _, n := range []int{0, 3} {
		if _, err := FromData(n, make([]float64, 216)); !errors.Is(err, ErrShape) {
			t.Errorf("FromData(%d, 216 values) error = %v, want ErrShape", n, err)
		}
	}
}

func TestSetAtBlock(t *testing.T) {
	f := New(3)
	f.Set(2, 1, 0, 0, 1, 2, 4.5)
	f.Add(2, 1, 0, 0, 1, 2, 0.5)
	if got := f.At(2, 1, 0, 0, 1, 2); got != 5 {
		t.Errorf("At = %g, want 5", got)
	}
	if got := f.Block(2, 1, 0)[0*9+1*3+2]; got != 5 {
		t.Errorf("Block element = %g, want 5", got)
	}
	if got := f.At(0, 1, 2, 0, 1, 2); got != 0 {
		t.Errorf("untouched element = %g, want 0", got)
	}
}

func TestPermutationAsymmetry(t *testing.T) {
	f := New(2)
	if got := f.PermutationAsymmetry(); got != 0 {
		t.Fatalf("zero constants asymmetry = %g", got)
	}

	// A fully symmetric element set leaves no asymmetry.
	for _, idx := range [][6]int{
		{0, 1, 1, 0, 2, 2}, {1, 0, 1, 2, 0, 2}, {1, 1, 0, 2, 2, 0},
	} {
		f.Set(idx[0], idx[1], idx[2], idx[3], idx[4], idx[5], 1.25)
	}
	if got := f.PermutationAsymmetry(); got != 0 {
		t.Errorf("symmetric constants asymmetry = %g, want 0", got)
	}

	f.Set(0, 1, 1, 0, 2, 2, 2.0)
	if got := f.PermutationAsymmetry(); got != 0.75 {
		t.Errorf("asymmetry = %g, want 0.75", got)
	}
}
